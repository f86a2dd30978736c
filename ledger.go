/*
Copyright 2024 Custodia Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package custodia

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-finance/custodia/model"
)

var tracer = otel.Tracer("custodia.ledger")

// logAndRecordError records an error on the span and returns it unchanged.
func logAndRecordError(span trace.Span, err error) error {
	span.RecordError(err)
	return err
}

// CreditAccount credits an account and records the ledger transaction. The
// balance update and the ledger row commit atomically in the datasource.
func (c *Custodia) CreditAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error) {
	ctx, span := tracer.Start(ctx, "Crediting account")
	defer span.End()

	created, err := c.datasource.CreditAccount(ctx, txn)
	if err != nil {
		return nil, logAndRecordError(span, err)
	}
	return created, nil
}

// DebitAccount debits an account if and only if the balance covers the
// amount, and records the ledger transaction atomically.
func (c *Custodia) DebitAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error) {
	ctx, span := tracer.Start(ctx, "Debiting account")
	defer span.End()

	created, err := c.datasource.DebitAccount(ctx, txn)
	if err != nil {
		return nil, logAndRecordError(span, err)
	}
	return created, nil
}

// GetBalance reads the current balance of an account.
func (c *Custodia) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.datasource.GetBalance(ctx, accountID)
}

// GetTransaction retrieves a ledger transaction by ID.
func (c *Custodia) GetTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	return c.datasource.GetTransaction(ctx, id)
}

// GetAccountTransactions retrieves an account's transaction history.
func (c *Custodia) GetAccountTransactions(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerTransaction, error) {
	return c.datasource.GetAccountTransactions(ctx, accountID, limit, offset)
}
