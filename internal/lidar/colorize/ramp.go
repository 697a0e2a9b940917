package colorize

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// Ramp names a perceptual colour map.
type Ramp string

const (
	Viridis   Ramp = "viridis"
	Kindlmann Ramp = "kindlmann"
	BlackBody Ramp = "blackbody"
)

// ViridisStops are the viridis control colours, dark to light. The HTML
// renderer hands them to the chart visual map directly.
var ViridisStops = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// ParseRamp resolves a ramp name, case-insensitively.
func ParseRamp(s string) (Ramp, error) {
	switch r := Ramp(strings.ToLower(strings.TrimSpace(s))); r {
	case Viridis, Kindlmann, BlackBody:
		return r, nil
	}
	return Viridis, &cloud.InvalidParameterError{Name: "colour ramp", Value: s, Reason: "must be viridis, kindlmann or blackbody"}
}

// ColorMap returns the ramp as a gonum palette with its domain set to
// [0, 1].
func (r Ramp) ColorMap() (palette.ColorMap, error) {
	var cm palette.ColorMap
	switch r {
	case Viridis:
		controls := make([]color.Color, len(ViridisStops))
		for i, hex := range ViridisStops {
			c, err := parseHex(hex)
			if err != nil {
				return nil, err
			}
			controls[i] = c
		}
		var err error
		if cm, err = moreland.NewLuminance(controls); err != nil {
			return nil, fmt.Errorf("build viridis ramp: %w", err)
		}
	case Kindlmann:
		cm = moreland.Kindlmann()
	case BlackBody:
		cm = moreland.BlackBody()
	default:
		return nil, &cloud.InvalidParameterError{Name: "colour ramp", Value: string(r), Reason: "unknown"}
	}
	cm.SetMin(0)
	cm.SetMax(1)
	return cm, nil
}

// RGB is an opaque 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Hex returns the colour as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

// ToRGB maps normalised values through ramp. Every value must be in
// [0, 1].
func ToRGB(values []float64, ramp Ramp) ([]RGB, error) {
	cm, err := ramp.ColorMap()
	if err != nil {
		return nil, err
	}
	out := make([]RGB, len(values))
	for i, v := range values {
		c, err := cm.At(v)
		if err != nil {
			return nil, &cloud.InvalidParameterError{Name: "colour value", Value: v, Reason: err.Error()}
		}
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		out[i] = RGB{R: nc.R, G: nc.G, B: nc.B}
	}
	return out, nil
}

func parseHex(s string) (color.Color, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(s) != 7 {
		return nil, fmt.Errorf("bad hex colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
