package sheet

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/pkg/notion"
)

// Notion caps a single rich text object at 2000 characters.
const notionTextLimit = 2000

// NotionSink stores one page per row in a Notion database. product_name is
// the title property; every other column is a rich text property.
type NotionSink struct {
	client     notion.Client
	databaseID string
}

// NewNotionSink creates a sink writing to the given database.
func NewNotionSink(client notion.Client, databaseID string) *NotionSink {
	return &NotionSink{client: client, databaseID: databaseID}
}

// EnsureHeader makes the database schema match the sheet columns:
// product_name is the title and every other column is rich text.
func (s *NotionSink) EnsureHeader(ctx context.Context) error {
	text := make([]string, 0, len(Columns)-1)
	for _, c := range Columns {
		if c != ColProductName {
			text = append(text, c)
		}
	}
	added, err := notion.EnsureProperties(ctx, s.client, s.databaseID, ColProductName, text)
	if err != nil {
		return eris.Wrap(err, "sheet: notion ensure header")
	}
	if len(added) > 0 {
		zap.L().Info("sheet: added notion properties", zap.Strings("properties", added))
	}
	return nil
}

// Append creates a page for row and returns its id.
func (s *NotionSink) Append(ctx context.Context, row Row) (string, error) {
	page, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.databaseID),
		},
		Properties: rowProperties(row),
	})
	if err != nil {
		return "", eris.Wrap(err, "sheet: notion append")
	}
	return string(page.ID), nil
}

// LastRow returns the row with the latest collected_at.
func (s *NotionSink) LastRow(ctx context.Context) (Row, error) {
	page, err := notion.QueryLatest(ctx, s.client, s.databaseID, ColCollectedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: notion last row")
	}
	if page == nil {
		return nil, ErrNoRows
	}
	return pageRow(page.Properties), nil
}

// Rows returns every page as a row, oldest first.
func (s *NotionSink) Rows(ctx context.Context) ([]Row, error) {
	pages, err := notion.QueryAll(ctx, s.client, s.databaseID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: ColCollectedAt, Direction: notionapi.SortOrderASC},
		},
		PageSize: 100,
	})
	if err != nil {
		return nil, eris.Wrap(err, "sheet: notion rows")
	}
	rows := make([]Row, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, pageRow(p.Properties))
	}
	return rows, nil
}

func rowProperties(row Row) notionapi.Properties {
	props := notionapi.Properties{}
	for _, col := range Columns {
		text := richText(row[col])
		if col == ColProductName {
			props[col] = &notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: text}
			continue
		}
		props[col] = &notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text}
	}
	return props
}

// richText splits s into chunks within the Notion text limit.
func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	runes := []rune(s)
	var out []notionapi.RichText
	for start := 0; start < len(runes); start += notionTextLimit {
		end := min(start+notionTextLimit, len(runes))
		chunk := string(runes[start:end])
		out = append(out, notionapi.RichText{
			Type:      notionapi.ObjectTypeText,
			Text:      &notionapi.Text{Content: chunk},
			PlainText: chunk,
		})
	}
	return out
}

func pageRow(props notionapi.Properties) Row {
	r := make(Row, len(Columns))
	for _, col := range Columns {
		r[col] = ""
		switch p := props[col].(type) {
		case *notionapi.TitleProperty:
			r[col] = plainText(p.Title)
		case *notionapi.RichTextProperty:
			r[col] = plainText(p.RichText)
		}
	}
	return r
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}
