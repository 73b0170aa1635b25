package ledger

// CalculateLineTotals computes one line's amounts from its inputs.
// Discount applies to the gross amount, tax to the discounted net.
func CalculateLineTotals(quantity int64, unitPrice, discountPercent, taxPercent float64) (subtotal, total float64) {
	gross := float64(quantity) * unitPrice
	discount := gross * (discountPercent / 100)
	subtotal = gross - discount
	tax := subtotal * (taxPercent / 100)
	total = subtotal + tax
	return
}

// ComputeTotals derives the transaction header amounts from its lines
// and payments: grandTotal is the sum of line totals, paidAmount the
// sum of payment amounts, dueAmount the unpaid remainder floored at
// zero (overpayment never produces a negative due).
func ComputeTotals(items []LineItem, payments []Payment) (grandTotal, paidAmount, dueAmount float64) {
	for _, item := range items {
		grandTotal += item.Total
	}
	for _, p := range payments {
		paidAmount += p.Amount
	}
	dueAmount = grandTotal - paidAmount
	if dueAmount < 0 {
		dueAmount = 0
	}
	return
}

func buildItems(inputs []LineItemInput) []LineItem {
	items := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		subtotal, total := CalculateLineTotals(in.Quantity, in.UnitPrice, in.DiscountPercent, in.TaxPercent)
		items = append(items, LineItem{
			ProductID:       in.ProductID,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      in.TaxPercent,
			Subtotal:        subtotal,
			Total:           total,
		})
	}
	return items
}

func buildPayments(inputs []PaymentInput) []Payment {
	payments := make([]Payment, 0, len(inputs))
	for _, in := range inputs {
		payments = append(payments, Payment{
			Amount:  in.Amount,
			PaidOn:  in.PaidOn,
			Method:  in.Method,
			Note:    in.Note,
			DueDate: in.DueDate,
		})
	}
	return payments
}
