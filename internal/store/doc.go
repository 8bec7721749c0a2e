// Package store хранит фрагменты писем в persistent-базе chromem-go
// и выполняет семантический поиск по ним.
package store
