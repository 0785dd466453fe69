// Package tabular drops incomplete records from CSV files.
//
// A data row is kept only when every header column has a value. Empty fields
// and the usual NA markers (NA, NaN, null, None, ...) count as missing. The
// header is written unchanged and no index column is added, so cleaning an
// already cleaned file is a no-op.
//
//	stats, err := tabular.Clean("raw_products.csv", "products_cleaned.csv")
package tabular
