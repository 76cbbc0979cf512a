package domain

// CirculatingSupply is reference data for one base asset.
// Corresponds to circulating_supply table in PostgreSQL.
type CirculatingSupply struct {
	Asset     string  // base asset, e.g. "BTC" (PK)
	Supply    float64 // circulating units of the asset
	Source    string  // where the figure came from (seed file, provider name)
	UpdatedAt int64   // when the figure was last changed (ms)
}
