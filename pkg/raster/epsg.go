package raster

import (
	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

// proj4ByEPSG maps the EPSG codes carried by the project rasters (and their
// common neighbors) to proj4 definitions. The DEM is NAD83 UTM zone 18N,
// NLCD and CDL ship in CONUS Albers, and the runoff grid follows the DEM.
var proj4ByEPSG = map[int]string{
	// Geographic
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4269: "+proj=longlat +datum=NAD83 +no_defs",

	// Web mercator
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",

	// CONUS Albers (NLCD, CDL)
	5070: "+proj=aea +lat_0=23 +lon_0=-96 +lat_1=29.5 +lat_2=45.5 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
	6350: "+proj=aea +lat_0=23 +lon_0=-96 +lat_1=29.5 +lat_2=45.5 +x_0=0 +y_0=0 +ellps=GRS80 +units=m +no_defs",

	// UTM zones 17-19N, NAD83 and WGS84, spelled as tmerc so any proj4
	// port resolves them.
	26917: "+proj=tmerc +lat_0=0 +lon_0=-81 +k=0.9996 +x_0=500000 +y_0=0 +datum=NAD83 +units=m +no_defs",
	26918: "+proj=tmerc +lat_0=0 +lon_0=-75 +k=0.9996 +x_0=500000 +y_0=0 +datum=NAD83 +units=m +no_defs",
	26919: "+proj=tmerc +lat_0=0 +lon_0=-69 +k=0.9996 +x_0=500000 +y_0=0 +datum=NAD83 +units=m +no_defs",
	32617: "+proj=tmerc +lat_0=0 +lon_0=-81 +k=0.9996 +x_0=500000 +y_0=0 +datum=WGS84 +units=m +no_defs",
	32618: "+proj=tmerc +lat_0=0 +lon_0=-75 +k=0.9996 +x_0=500000 +y_0=0 +datum=WGS84 +units=m +no_defs",
	32619: "+proj=tmerc +lat_0=0 +lon_0=-69 +k=0.9996 +x_0=500000 +y_0=0 +datum=WGS84 +units=m +no_defs",
}

// Proj4FromEPSG returns the proj4 definition for an EPSG code.
func Proj4FromEPSG(code int) (string, error) {
	if p, ok := proj4ByEPSG[code]; ok {
		return p, nil
	}
	return "", errors.New(errors.ErrCodeCRS, "no proj4 definition for EPSG:%d", code)
}
