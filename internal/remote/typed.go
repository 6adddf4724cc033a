package remote

import (
	"context"
	"net/url"

	"github.com/veranemoloko/bookvault/internal/domain"
)

type detailResponse struct {
	Data struct {
		Data domain.Work `json:"data"`
	} `json:"data"`
}

type catalogResponse struct {
	Data struct {
		Lists []catalogItem `json:"lists"`
	} `json:"data"`
}

type catalogItem struct {
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	Position *int   `json:"position"`
}

type contentResponse struct {
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// FetchWork returns the decoded metadata of a work. The chapter list is left empty.
func (c *Client) FetchWork(ctx context.Context, workID string) (*domain.Work, error) {
	var resp detailResponse
	if err := c.get(ctx, "/api/detail", url.Values{"book_id": {workID}}, &resp); err != nil {
		return nil, err
	}
	work := resp.Data.Data
	work.Chapters = nil
	return &work, nil
}

// FetchCatalog returns the chapter list of a work in catalog order.
func (c *Client) FetchCatalog(ctx context.Context, workID string) ([]domain.ChapterDescriptor, error) {
	var resp catalogResponse
	if err := c.get(ctx, "/api/directory", url.Values{"book_id": {workID}}, &resp); err != nil {
		return nil, err
	}

	chapters := make([]domain.ChapterDescriptor, 0, len(resp.Data.Lists))
	for i, item := range resp.Data.Lists {
		pos := i
		if item.Position != nil {
			pos = *item.Position
		}
		chapters = append(chapters, domain.ChapterDescriptor{
			ID:       item.ItemID,
			Title:    item.Title,
			Position: pos,
		})
	}
	return chapters, nil
}

// FetchChapterText returns the plain text of a novel chapter.
func (c *Client) FetchChapterText(ctx context.Context, itemID string) (string, error) {
	var resp contentResponse
	params := url.Values{
		"tab":     {string(KindNovel)},
		"item_id": {itemID},
	}
	if err := c.get(ctx, "/api/content", params, &resp); err != nil {
		return "", err
	}
	return resp.Data.Content, nil
}
