package jobs

import (
	"context"
	"fmt"
	"time"

	"ordermart/internal/storage"
)

// DocumentInvoiceGenerator produces an invoice document for an order and
// stores it in the document bucket. The document itself is a plain-text
// rendering; the storage key is what gets recorded on the invoice row.
type DocumentInvoiceGenerator struct {
	store  storage.DocumentStore
	bucket string
}

func NewDocumentInvoiceGenerator(store storage.DocumentStore, bucket string) *DocumentInvoiceGenerator {
	return &DocumentInvoiceGenerator{store: store, bucket: bucket}
}

func (g *DocumentInvoiceGenerator) Generate(ctx context.Context, payload InvoicePayload) (string, error) {
	document := fmt.Sprintf(
		"Invoice for order %s\nOrder ID: %s\nTenant: %s\nTotal due: %s\nGenerated: %s\n",
		payload.OrderNumber,
		payload.OrderID,
		payload.TenantID,
		payload.Total,
		time.Now().UTC().Format(time.RFC3339),
	)

	objectName := fmt.Sprintf("invoices/%s/%s.txt", payload.TenantID, payload.OrderID)
	if err := g.store.UploadDocument(ctx, g.bucket, objectName, []byte(document), "text/plain"); err != nil {
		return "", err
	}
	return objectName, nil
}
