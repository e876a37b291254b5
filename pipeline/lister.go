package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"vector-viz/store"
)

/*
ListIDs walks every page of identifiers in a namespace and returns them in listing order.

An empty namespace yields an empty slice and no error. A failure on the first page or an
authentication failure is returned; a failure on a later page stops the walk, is logged, and
the identifiers collected so far are returned.
*/
func ListIDs(ctx context.Context, src store.Source, namespace string, pageSize int, logger logrus.FieldLogger) ([]string, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ids := []string{}
	cursor := ""
	pages := 0

	for {
		page, err := src.ListPage(ctx, namespace, cursor, pageSize)
		if err != nil {
			if pages == 0 || errors.Is(err, store.ErrUnauthorized) || ctx.Err() != nil {
				return nil, fmt.Errorf("failed to list ids: %w", err)
			}
			logger.WithFields(logrus.Fields{
				"page":      pages + 1,
				"collected": len(ids),
			}).WithError(err).Error("Listing stopped early, continuing with partial ids")
			return ids, nil
		}
		pages++

		if len(page.IDs) == 0 {
			break
		}
		ids = append(ids, page.IDs...)
		logger.WithFields(logrus.Fields{"page": pages, "count": len(page.IDs)}).Debug("Listed page")

		if page.Next == "" || page.Next == cursor {
			break
		}
		cursor = page.Next
	}
	return ids, nil
}
