package models

import "time"

// Note is a decrypted note. Title, Content and Tags are stored encrypted;
// ID, timestamps and IsFavorite are stored in clear.
type Note struct {
	ID         string
	Title      string
	Content    string
	Tags       []string
	IsFavorite bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NoteRow is a notes table row as stored, with ciphertext left untouched.
type NoteRow struct {
	ID               string  `json:"id"`
	TitleEncrypted   *string `json:"title_encrypted"`
	ContentEncrypted *string `json:"content_encrypted"`
	CreatedAt        int64   `json:"created_at"`
	UpdatedAt        int64   `json:"updated_at"`
	TagsEncrypted    *string `json:"tags_encrypted"`
	IsFavorite       bool    `json:"is_favorite"`
}
