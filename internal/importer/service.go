package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// Poster is the part of the ledger processor the importer needs.
type Poster interface {
	Process(ctx context.Context, params ledger.PostParams) (*transaction.Transaction, error)
}

type Result struct {
	Created  []*transaction.Transaction
	Rejected []RowError
}

type Service struct {
	poster Poster
}

func NewService(poster Poster) *Service {
	return &Service{poster: poster}
}

// Import posts every valid row in order. A rejected row does not undo the
// rows posted before it.
func (s *Service) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, rowErrs, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing import: %w", err)
	}

	result := &Result{Rejected: rowErrs}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tx, err := s.poster.Process(ctx, row.Params)
		if err != nil {
			result.Rejected = append(result.Rejected, RowError{Line: row.Line, Reason: err.Error()})
			continue
		}

		result.Created = append(result.Created, tx)
	}

	slog.Info("import finished", "created", len(result.Created), "rejected", len(result.Rejected))

	return result, nil
}
