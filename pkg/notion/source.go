package notion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jomei/notionapi"
)

const pageSize = 100

// Source returns every page of the character database.
type Source interface {
	Pages(ctx context.Context) ([]notionapi.Page, error)
}

type DatabaseSource struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

func NewDatabaseSource(apiKey string, databaseID string, httpClient *http.Client) (*DatabaseSource, error) {
	if apiKey == "" || databaseID == "" {
		return nil, ErrNotConfigured
	}
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &DatabaseSource{
		client:     notionapi.NewClient(notionapi.Token(apiKey), opts...),
		databaseID: notionapi.DatabaseID(databaseID),
	}, nil
}

func (s *DatabaseSource) Pages(ctx context.Context) ([]notionapi.Page, error) {
	var (
		pages  []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		rs, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("notion: error while querying database %s: %w", s.databaseID, err)
		}
		pages = append(pages, rs.Results...)
		if !rs.HasMore || rs.NextCursor == "" {
			return pages, nil
		}
		cursor = rs.NextCursor
	}
}
