package constants

const Version = "1.0.0"

// Extraction defaults.
const (
	ArchiveSuffix    = ".zip"
	ShapefileSuffix  = `\.shp$`
	DefaultBatchSize = 50
)

// Converter defaults. The SRID is fixed; CanVec data is published in WGS 84.
const (
	DefaultConverter = "shp2pgsql"
	DefaultSRID      = "4326"
	DefaultEncoding  = "UTF-8"
	DefaultSchema    = "public"
)

// Output rotation.
const (
	DefaultRotationThresholdMB = 100
	MiB                        = int64(1024 * 1024)
)

const TempDirName = "canload"
