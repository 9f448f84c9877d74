package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shopvisit/internal/model"
)

func TestWriteOrders(t *testing.T) {
	orders := []model.Order{
		{
			OrderNumber: "ORD-2", VisitDate: "2026-10-20", VisitTime: "09:00", CatalogID: "c2",
			SalePrice: decimal.RequireFromString("50"), FinalPrice: decimal.RequireFromString("60"),
			PaymentMethod: model.PaymentPayOnVisit, PaymentStatus: model.PaymentPaid,
		},
		{
			OrderNumber: "ORD-1", VisitDate: "2026-10-19", VisitTime: "10:30", CatalogID: "c1",
			SalePrice: decimal.RequireFromString("200"), FinalPrice: decimal.RequireFromString("220"),
			PaymentMethod: model.PaymentPayOnVisit, PaymentStatus: model.PaymentUnpaid,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, orders))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, orderColumns, rows[0])
	assert.Equal(t, "ORD-1", rows[1][0])
	assert.Equal(t, "ORD-2", rows[2][0])
	assert.Equal(t, "Unpaid", rows[1][7])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, []string{"Orders", "2"}, summary[1])
	assert.Equal(t, []string{"Paid total", "60"}, summary[2])
	assert.Equal(t, []string{"Unpaid total", "220"}, summary[3])
}

func TestWriteOrdersEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
