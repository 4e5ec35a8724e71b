// Package color builds the generated avatar assigned to new accounts.
package color

import (
	"fmt"
	"hash/fnv"
	"net/url"
)

// avatarBaseURL is the DiceBear avataaars endpoint used for default profile images.
const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"

// Fixed saturation and lightness keep every generated background readable.
const (
	avatarSaturation = 0.45
	avatarLightness  = 0.72
)

// AvatarURL returns the default profile image URL for a user. The seed is the
// username so the face matches what the original client showed; the
// background colour is derived from the user id.
func AvatarURL(username, userID string) string {
	q := url.Values{}
	q.Set("seed", username)
	q.Set("backgroundColor", ForUser(userID)[1:])
	return avatarBaseURL + "?" + q.Encode()
}

// ForUser returns a deterministic "#RRGGBB" colour for a user id.
func ForUser(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	hue := float64(h.Sum32() % 360)

	r, g, b := hslToRGB(hue, avatarSaturation, avatarLightness)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// hslToRGB converts hue (0-360), saturation and lightness (0-1) to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}

	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q

	return channel(p, q, h+1.0/3.0), channel(p, q, h), channel(p, q, h-1.0/3.0)
}

func channel(p, q, t float64) uint8 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}

	var v float64
	switch {
	case t < 1.0/6.0:
		v = p + (q-p)*6*t
	case t < 1.0/2.0:
		v = q
	case t < 2.0/3.0:
		v = p + (q-p)*(2.0/3.0-t)*6
	default:
		v = p
	}
	return uint8(v*255 + 0.5)
}
