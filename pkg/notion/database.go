package notion

import (
	"context"
	"errors"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryLatest returns the newest page of a database ordered by the given
// date property, or nil when the database is empty.
func QueryLatest(ctx context.Context, c Client, dbID, sortProperty string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: sortProperty, Direction: notionapi.SortOrderDESC},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: query latest")
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// QueryAll fetches all pages from a Notion database, following cursors.
// Rate limiting is enforced by the Client (3 req/s by default).
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// ErrTitleMismatch is returned by EnsureProperties when the database's
// title property has a different name. Notion allows exactly one title
// property, so it cannot be added alongside.
var ErrTitleMismatch = errors.New("notion: title property name mismatch")

// EnsureProperties makes sure the database has titleProp as its title
// property and a rich text property for each of textProps. Missing text
// properties are added in a single update. It returns the names added.
func EnsureProperties(ctx context.Context, c Client, dbID, titleProp string, textProps []string) ([]string, error) {
	db, err := c.GetDatabase(ctx, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "notion: ensure properties")
	}

	for name, p := range db.Properties {
		if p.GetType() == notionapi.PropertyConfigTypeTitle && name != titleProp {
			return nil, eris.Wrapf(ErrTitleMismatch, "notion: database %s title is %q, want %q", dbID, name, titleProp)
		}
	}

	missing := notionapi.PropertyConfigs{}
	var added []string
	for _, name := range textProps {
		if _, ok := db.Properties[name]; ok {
			continue
		}
		missing[name] = notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText}
		added = append(added, name)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if _, err := c.UpdateDatabase(ctx, dbID, &notionapi.DatabaseUpdateRequest{Properties: missing}); err != nil {
		return nil, eris.Wrap(err, "notion: add properties")
	}
	return added, nil
}
