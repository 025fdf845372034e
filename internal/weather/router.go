package weather

// PrimarySource names which provider family is authoritative for a point.
type PrimarySource string

const (
	SourceDomestic      PrimarySource = "domestic"
	SourceInternational PrimarySource = "international"
)

type bbox struct {
	name                           string
	latMin, latMax, lonMin, lonMax float64
}

func (b bbox) contains(lat, lon float64) bool {
	return lat >= b.latMin && lat <= b.latMax && lon >= b.lonMin && lon <= b.lonMax
}

// Domestic coverage: continental US, Alaska, Hawaii, Puerto Rico. Edges are inclusive.
var domesticBoxes = []bbox{
	{name: "conus", latMin: 24.0, latMax: 50.0, lonMin: -125.0, lonMax: -66.0},
	{name: "alaska", latMin: 51.0, latMax: 72.0, lonMin: -180.0, lonMax: -129.0},
	{name: "hawaii", latMin: 18.0, latMax: 23.0, lonMin: -161.0, lonMax: -154.0},
	{name: "puerto_rico", latMin: 17.5, latMax: 18.6, lonMin: -68.0, lonMax: -65.0},
}

// Classify maps a coordinate to the provider family that should serve it.
func Classify(lat, lon float64) PrimarySource {
	for _, b := range domesticBoxes {
		if b.contains(lat, lon) {
			return SourceDomestic
		}
	}
	return SourceInternational
}
