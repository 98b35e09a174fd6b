package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryLatest(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.PageSize == 1 &&
			len(req.Sorts) == 1 &&
			req.Sorts[0].Property == "Collected At" &&
			req.Sorts[0].Direction == notionapi.SortOrderDESC
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "newest"}},
	}, nil).Once()

	page, err := QueryLatest(ctx, mc, "db-1", "Collected At")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, notionapi.ObjectID("newest"), page.ID)
	mc.AssertExpectations(t)
}

func TestQueryLatest_Empty(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-empty", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()

	page, err := QueryLatest(ctx, mc, "db-empty", "Collected At")
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestQueryLatest_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-err", mock.Anything).Return(nil, assert.AnError).Once()

	_, err := QueryLatest(ctx, mc, "db-err", "Collected At")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query latest")
}

func TestQueryAll_MultiPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "p1"}},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cursor-abc"),
	}, nil).Once()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor("cursor-abc") && req.PageSize == 50
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "p2"}},
	}, nil).Once()

	pages, err := QueryAll(ctx, mc, "db-1", &notionapi.DatabaseQueryRequest{PageSize: 50})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, notionapi.ObjectID("p1"), pages[0].ID)
	assert.Equal(t, notionapi.ObjectID("p2"), pages[1].ID)
	mc.AssertExpectations(t)
}

func TestQueryAll_ErrorOnSecondPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "p1"}},
		HasMore:    true,
		NextCursor: "c2",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == "c2"
	})).Return(nil, assert.AnError).Once()

	_, err := QueryAll(ctx, mc, "db-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query all page")
}

func schema(props map[string]notionapi.PropertyConfigType) *notionapi.Database {
	db := &notionapi.Database{Properties: notionapi.PropertyConfigs{}}
	for name, typ := range props {
		switch typ {
		case notionapi.PropertyConfigTypeTitle:
			db.Properties[name] = &notionapi.TitlePropertyConfig{Type: typ}
		default:
			db.Properties[name] = &notionapi.RichTextPropertyConfig{Type: typ}
		}
	}
	return db
}

func TestEnsureProperties_AddsMissing(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("GetDatabase", ctx, "db-1").Return(schema(map[string]notionapi.PropertyConfigType{
		"product_name": notionapi.PropertyConfigTypeTitle,
		"brand":        notionapi.PropertyConfigTypeRichText,
	}), nil).Once()
	mc.On("UpdateDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseUpdateRequest) bool {
		_, hasPrice := req.Properties["price_cad"]
		_, hasBrand := req.Properties["brand"]
		return len(req.Properties) == 2 && hasPrice && !hasBrand
	})).Return(&notionapi.Database{}, nil).Once()

	added, err := EnsureProperties(ctx, mc, "db-1", "product_name", []string{"brand", "price_cad", "category"})
	require.NoError(t, err)
	assert.Equal(t, []string{"price_cad", "category"}, added)
	mc.AssertExpectations(t)
}

func TestEnsureProperties_UpToDate(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("GetDatabase", ctx, "db-1").Return(schema(map[string]notionapi.PropertyConfigType{
		"product_name": notionapi.PropertyConfigTypeTitle,
		"brand":        notionapi.PropertyConfigTypeRichText,
	}), nil).Once()

	added, err := EnsureProperties(ctx, mc, "db-1", "product_name", []string{"brand"})
	require.NoError(t, err)
	assert.Empty(t, added)
	mc.AssertNotCalled(t, "UpdateDatabase", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureProperties_TitleMismatch(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("GetDatabase", ctx, "db-1").Return(schema(map[string]notionapi.PropertyConfigType{
		"Name": notionapi.PropertyConfigTypeTitle,
	}), nil).Once()

	_, err := EnsureProperties(ctx, mc, "db-1", "product_name", []string{"brand"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTitleMismatch))
	assert.Contains(t, err.Error(), `"Name"`)
}

func TestEnsureProperties_GetError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("GetDatabase", ctx, "db-1").Return(nil, &APIError{StatusCode: 404, Code: "object_not_found"}).Once()

	_, err := EnsureProperties(ctx, mc, "db-1", "product_name", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}
