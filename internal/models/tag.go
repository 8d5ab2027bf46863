package models

import "time"

// TagDictionary is one reusable archive tag with a usage counter maintained
// atomically as archives reference or drop the tag.
type TagDictionary struct {
	ID         string    `db:"tag_id" json:"tag_id"`
	TagName    string    `db:"tag_name" json:"tag_name"`
	UsageCount int       `db:"usage_count" json:"usage_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DictionaryEntry maps a coded value (e.g. a file-standard code) to its
// display label.
type DictionaryEntry struct {
	ID       string `db:"entry_id" json:"entry_id"`
	DictType string `db:"dict_type" json:"dict_type"`
	Value    string `db:"dict_value" json:"dict_value"`
	Label    string `db:"dict_label" json:"dict_label"`
	Sort     int    `db:"sort" json:"sort"`
}
