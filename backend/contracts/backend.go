package contracts

import (
	"context"
	"io"

	"github.com/meysamhadeli/codechat/backend/models"
)

// IBackend is everything the session layer needs from the indexing/query backend.
type IBackend interface {
	TestConnection(ctx context.Context, request models.ConnectionRequest) (*models.ConnectionResult, error)
	SetModel(ctx context.Context, model string) error
	LoadRepository(ctx context.Context, request models.LoadRepositoryRequest) error
	LoadDirectory(ctx context.Context, path string) error
	IndexingStatus(ctx context.Context) (*models.IndexingStatus, error)
	FileStructure(ctx context.Context) (*models.FileTreeNode, error)
	FileContent(ctx context.Context, path string) (*models.FileContent, error)
	Query(ctx context.Context, request models.QueryRequest) (*models.QueryResult, error)
	// QueryStream returns the raw event-stream body; the caller owns closing it.
	QueryStream(ctx context.Context, request models.QueryRequest) (io.ReadCloser, error)
	Search(ctx context.Context, term string) (models.SearchResults, error)
	RelatedFiles(ctx context.Context, path string) (*models.RelatedFiles, error)
	CodebaseSummary(ctx context.Context) (*models.CodebaseSummary, error)
	AnalyzeCodebase(ctx context.Context) (*models.QueryResult, error)
}
