package pipeline

import (
	"io"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/formats"
)

func writeCSV(w io.Writer, c *cloud.PointCloud) error {
	return formats.WriteCSV(w, c, formats.DefaultColumnMap())
}
