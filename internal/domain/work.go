package domain

import (
	"encoding/json"
	"slices"
)

// Work is the metadata snapshot of an archived work. It is stored as info.json
// and is always replaced as a whole.
type Work struct {
	ID             string              `json:"book_id"`
	Title          string              `json:"book_name"`
	OriginalTitle  string              `json:"original_book_name"`
	Author         string              `json:"author"`
	Synopsis       string              `json:"abstract"`
	Score          json.RawMessage     `json:"score,omitempty"`
	WordCount      json.RawMessage     `json:"word_number,omitempty"`
	Category       json.RawMessage     `json:"category,omitempty"`
	Tags           json.RawMessage     `json:"pure_category_tags,omitempty"`
	CoverURL       string              `json:"thumb_url"`
	CreationStatus json.RawMessage     `json:"creation_status,omitempty"`
	Chapters       []ChapterDescriptor `json:"chapter_list"`
}

// ChapterDescriptor identifies one content unit inside a work's chapter list.
type ChapterDescriptor struct {
	ID       string `json:"item_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// ChapterRecord is the persisted form of a single chapter. Content is obfuscated.
type ChapterRecord struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChapterView is a decoded chapter together with its neighbours in catalog order.
type ChapterView struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Previous *string `json:"prev"`
	Next     *string `json:"next"`
}

// Clone returns a deep copy of the work.
func (w *Work) Clone() *Work {
	if w == nil {
		return nil
	}
	c := *w
	c.Score = slices.Clone(w.Score)
	c.WordCount = slices.Clone(w.WordCount)
	c.Category = slices.Clone(w.Category)
	c.Tags = slices.Clone(w.Tags)
	c.CreationStatus = slices.Clone(w.CreationStatus)
	c.Chapters = slices.Clone(w.Chapters)
	return &c
}

// IndexOf returns the catalog index of the chapter id, or -1.
func (w *Work) IndexOf(chapterID string) int {
	return slices.IndexFunc(w.Chapters, func(ch ChapterDescriptor) bool {
		return ch.ID == chapterID
	})
}

// Neighbours returns the ids of the chapters before and after chapterID.
// Either value is nil at a boundary or when the chapter is not listed.
func (w *Work) Neighbours(chapterID string) (prev, next *string) {
	i := w.IndexOf(chapterID)
	if i < 0 {
		return nil, nil
	}
	if i > 0 {
		id := w.Chapters[i-1].ID
		prev = &id
	}
	if i < len(w.Chapters)-1 {
		id := w.Chapters[i+1].ID
		next = &id
	}
	return prev, next
}
