package model

import (
	"time"

	"gorm.io/datatypes"
)

/*
Document is one row of the SQL backed document store.

Collection: full collection path, e.g. "posts" or "posts/p1/comments"
Id: document id inside the collection
Data: the document body as jsonb, field names match the firestore tags
UpdatedAt: time of the last Set

(Collection, Id) is the primary key.
*/
type Document struct {
	Collection string `gorm:"primaryKey"`
	Id         string `gorm:"primaryKey"`
	Data       datatypes.JSON
	UpdatedAt  time.Time
}
