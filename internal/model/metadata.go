package model

type Metadata struct {
	Hash          string `json:"hash"`
	LastUpdatedOn int64  `json:"lastUpdatedOn"`
}
