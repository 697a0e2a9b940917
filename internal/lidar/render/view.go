package render

import (
	"fmt"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// View selects how a cloud is projected for display.
type View int

const (
	View3D View = iota
	ViewXY      // top-down
	ViewXZ      // side
	ViewYZ      // front
)

var viewNames = []string{"3d", "xy", "xz", "yz"}

func (v View) String() string {
	if v >= 0 && int(v) < len(viewNames) {
		return viewNames[v]
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// ParseView resolves a view name, case-insensitively.
func ParseView(s string) (View, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range viewNames {
		if n == name {
			return View(i), nil
		}
	}
	return View3D, &cloud.InvalidParameterError{Name: "view", Value: s, Reason: "must be 3d, xy, xz or yz"}
}

// axes returns the horizontal and vertical axis of a 2D projection.
func (v View) axes() (h, vert cloud.Axis, ok bool) {
	switch v {
	case ViewXY:
		return cloud.AxisX, cloud.AxisY, true
	case ViewXZ:
		return cloud.AxisX, cloud.AxisZ, true
	case ViewYZ:
		return cloud.AxisY, cloud.AxisZ, true
	}
	return 0, 0, false
}

// stride returns the step that keeps at most maxPoints of n points.
// maxPoints <= 0 keeps every point.
func stride(n, maxPoints int) int {
	if maxPoints <= 0 || n <= maxPoints {
		return 1
	}
	return (n + maxPoints - 1) / maxPoints
}
