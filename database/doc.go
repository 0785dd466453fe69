// Package database provides a GORM-based database component with connection
// retries, pooling, health checks, transactions, and auto-migration.
//
// SQLite is the default driver; other GORM dialectors can be supplied with
// Component.WithDriver. The run store and the SQL warehouse both sit on top
// of this package.
//
//	comp := database.NewComponent(database.Config{Enabled: true, DSN: "etlflow.db"}, log).
//	    WithAutoMigrate(&sqlstore.RunModel{})
//	if err := comp.Start(ctx); err != nil { ... }
//	db := comp.DB()
//
// # In-memory databases
//
// A ":memory:" SQLite database lives as long as its connection. The sqlite
// defaults therefore pin the pool to a single connection without lifetime
// limits.
package database
