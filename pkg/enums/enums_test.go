package enums

import "testing"

func TestOrderTypePrefixes(t *testing.T) {
	cases := map[OrderType]string{
		OrderTypeSale:     "SO",
		OrderTypePurchase: "PO",
		OrderTypeReturn:   "RO",
		OrderTypeTransfer: "TO",
	}
	for typ, want := range cases {
		if got := typ.NumberPrefix(); got != want {
			t.Fatalf("%s: expected prefix %q got %q", typ, want, got)
		}
	}
	if OrderType("gift").NumberPrefix() != "" {
		t.Fatalf("unknown types carry no prefix")
	}
}

func TestStockReasonClassification(t *testing.T) {
	for _, r := range []StockReason{StockReasonSale, StockReasonTransferOut, StockReasonDamage, StockReasonExpired, StockReasonTheft} {
		if !r.IsOutbound() || r.IsInbound() || r.IsForced() {
			t.Fatalf("%s should be outbound only", r)
		}
	}
	for _, r := range []StockReason{StockReasonPurchase, StockReasonReturn, StockReasonTransferIn} {
		if !r.IsInbound() || r.IsOutbound() {
			t.Fatalf("%s should be inbound", r)
		}
	}
	if !StockReasonAudit.IsForced() || !StockReasonAdjustment.IsForced() {
		t.Fatalf("audit and adjustment force the balance")
	}
	if StockReasonReservation.IsMovement() || StockReasonUnreservation.IsMovement() {
		t.Fatalf("reservation reasons never move quantity")
	}
}

func TestStockReasonTransactionType(t *testing.T) {
	cases := map[StockReason]StockTransactionType{
		StockReasonPurchase:      StockTransactionIn,
		StockReasonSale:          StockTransactionOut,
		StockReasonDamage:        StockTransactionOut,
		StockReasonTransferIn:    StockTransactionTransfer,
		StockReasonTransferOut:   StockTransactionTransfer,
		StockReasonAdjustment:    StockTransactionAdjustment,
		StockReasonAudit:         StockTransactionAdjustment,
		StockReasonReservation:   StockTransactionReserved,
		StockReasonUnreservation: StockTransactionUnreserved,
	}
	for reason, want := range cases {
		if got := reason.TransactionType(); got != want {
			t.Fatalf("%s: expected %s got %s", reason, want, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("confirmed")
	if err != nil || status != OrderStatusConfirmed {
		t.Fatalf("unexpected parse result %q %v", status, err)
	}
	if _, err := ParseOrderStatus("canceled"); err == nil {
		t.Fatalf("expected error for misspelled status")
	}
	if !OrderStatusCompleted.IsTerminal() || OrderStatusShipped.IsTerminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if got, err := ParsePaymentStatus("partial"); err != nil || got != PaymentStatusPartial {
		t.Fatalf("expected partial, got %q err=%v", got, err)
	}
	if _, err := ParsePaymentStatus("PAID"); err == nil {
		t.Fatalf("wire values are case sensitive")
	}
}

func TestOutboxDLQErrorReasons(t *testing.T) {
	for _, raw := range []string{"max_attempts", "non_retryable", "unresolvable", "unroutable"} {
		reason, err := ParseOutboxDLQErrorReason(raw)
		if err != nil || !reason.IsValid() {
			t.Fatalf("%s should parse: %v", raw, err)
		}
	}
	if OutboxDLQReasonUnresolvable.Replayable() {
		t.Fatalf("unresolvable events cannot be replayed as-is")
	}
	if !OutboxDLQReasonMaxAttempts.Replayable() {
		t.Fatalf("exhausted retries can be replayed")
	}
}

func TestOutboxEventAggregates(t *testing.T) {
	owner, ok := EventReservationReleased.Aggregate()
	if !ok || owner != AggregateStockItem {
		t.Fatalf("reservation_released owned by %q", owner)
	}
	if _, ok := OutboxEventType("order_deleted").Aggregate(); ok {
		t.Fatal("unknown event type should have no aggregate")
	}
	if _, err := ParseOutboxEventType("low_stock_raised"); err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if _, err := ParseOutboxAggregateType("warehouse"); err == nil {
		t.Fatal("expected warehouse to be rejected as an aggregate")
	}
}

func TestActorRoleTenantRules(t *testing.T) {
	cases := map[ActorRole][2]bool{
		ActorRoleService: {true, true},
		ActorRoleAdmin:   {true, false},
		ActorRoleManager: {false, false},
		ActorRoleStaff:   {false, false},
	}
	for role, want := range cases {
		if got := role.TenantOptional(); got != want[0] {
			t.Fatalf("%s: TenantOptional = %v", role, got)
		}
		if got := role.CrossTenant(); got != want[1] {
			t.Fatalf("%s: CrossTenant = %v", role, got)
		}
	}
}
