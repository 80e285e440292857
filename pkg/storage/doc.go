// Package storage provides the GORM-backed implementation of
// core.Store, plus connection pool tuning and aggregate stats queries.
package storage
