// Package zones maps a ceiling fixture's zone strip onto its two logical lights.
//
// The last zone is the uplight; every other zone belongs to the downlight and
// always carries the same color.
package zones

// Capabilities describes a product variant.
type Capabilities struct {
	ProductID  uint32
	Name       string
	TotalZones int
	TileWidth  uint8
	MinKelvin  uint16
	MaxKelvin  uint16
}

// UplightIndex returns the index of the uplight zone.
func (c Capabilities) UplightIndex() int {
	return c.TotalZones - 1
}

// DownlightZones returns how many zones make up the downlight.
func (c Capabilities) DownlightZones() int {
	return c.TotalZones - 1
}

const (
	defaultZones     = 64
	largeZones       = 128
	defaultTileWidth = 8
	largeTileWidth   = 16
	defaultMinKelvin = 1500
	defaultMaxKelvin = 9000
)

var catalog = map[uint32]Capabilities{
	176: {ProductID: 176, Name: "LIFX Ceiling", TotalZones: defaultZones, TileWidth: defaultTileWidth, MinKelvin: 1500, MaxKelvin: 9000},
	177: {ProductID: 177, Name: "LIFX Ceiling", TotalZones: defaultZones, TileWidth: defaultTileWidth, MinKelvin: 1500, MaxKelvin: 9000},
	201: {ProductID: 201, Name: "LIFX Ceiling 13x26\"", TotalZones: largeZones, TileWidth: largeTileWidth, MinKelvin: 1500, MaxKelvin: 9000},
	202: {ProductID: 202, Name: "LIFX Ceiling 13x26\"", TotalZones: largeZones, TileWidth: largeTileWidth, MinKelvin: 1500, MaxKelvin: 9000},
}

// Lookup returns the capabilities of a product. Unknown products are treated
// as 64-zone fixtures.
func Lookup(productID uint32) Capabilities {
	if c, ok := catalog[productID]; ok {
		return c
	}
	return Capabilities{
		ProductID:  productID,
		Name:       "Unknown",
		TotalZones: defaultZones,
		TileWidth:  defaultTileWidth,
		MinKelvin:  defaultMinKelvin,
		MaxKelvin:  defaultMaxKelvin,
	}
}

// IsCeiling reports whether the product is a known ceiling fixture.
func IsCeiling(productID uint32) bool {
	_, ok := catalog[productID]
	return ok
}

// TotalZones returns 128 for the large ceiling family and 64 for everything else.
func TotalZones(productID uint32) int {
	return Lookup(productID).TotalZones
}

// UplightIndex returns TotalZones(productID) - 1.
func UplightIndex(productID uint32) int {
	return Lookup(productID).UplightIndex()
}
