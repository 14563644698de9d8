package status

import (
	"context"
	"sort"
	"time"
)

// GetRelatedOrders returns the deduplicated bill-number tree for an MTO:
// the orders (sales, production, purchase) and the documents booked against
// them. It reads the persistent tier when fresh, live otherwise.
func (s *Service) GetRelatedOrders(ctx context.Context, mto string) (RelatedOrders, error) {
	if err := ValidateMTO(mto); err != nil {
		return RelatedOrders{}, err
	}

	now := time.Now().UTC()
	source := SourceLive

	var b *bundle
	fresh, _, err := s.persistentFresh(ctx, mto, now)
	if err != nil {
		return RelatedOrders{}, err
	}
	if fresh {
		if b, err = s.fetchPersistent(ctx, mto); err != nil {
			return RelatedOrders{}, err
		}
		source = SourcePersistent
	}
	if b == nil || b.empty() {
		if b, err = s.fetchLive(ctx, mto); err != nil {
			return RelatedOrders{}, err
		}
		source = SourceLive
	}

	out := buildRelated(b)
	out.QueryTime = now
	out.DataSource = source
	return out, nil
}

func buildRelated(b *bundle) RelatedOrders {
	var out RelatedOrders

	prodOrders := map[string]bool{}
	purchOrders := map[string]bool{}

	{
		g := newBillGroup("Sales order")
		for _, r := range b.soLines {
			g.add(r.BillNo, "")
		}
		out.Orders.SalesOrders = g.refs()
	}
	{
		g := newBillGroup("Production order")
		for _, r := range b.orders {
			g.add(r.BillNo, "")
			prodOrders[r.BillNo] = true
		}
		out.Orders.ProductionOrders = g.refs()
	}
	{
		g := newBillGroup("Purchase order")
		for _, r := range b.poLines {
			g.add(r.BillNo, "")
			purchOrders[r.BillNo] = true
		}
		out.Orders.PurchaseOrders = g.refs()
	}

	{
		// A production receipt links to the production order it was booked
		// against; the link is absent when that order is not on this MTO.
		g := newBillGroup("Production receipt")
		for _, r := range b.prodRcpts {
			link := ""
			if prodOrders[r.MOBillNo] {
				link = r.MOBillNo
			}
			g.add(r.BillNo, link)
		}
		out.Documents.ProductionReceipts = g.refs()
	}
	{
		g := newBillGroup("Purchase receipt")
		for _, r := range b.poRcpts {
			link := ""
			if purchOrders[r.POBillNo] {
				link = r.POBillNo
			}
			g.add(r.BillNo, link)
		}
		out.Documents.PurchaseReceipts = g.refs()
	}
	{
		g := newBillGroup("Material picking")
		for _, r := range b.pickings {
			g.add(r.BillNo, "")
		}
		out.Documents.MaterialPicking = g.refs()
	}
	{
		g := newBillGroup("Sales delivery")
		for _, r := range b.deliveries {
			g.add(r.BillNo, "")
		}
		out.Documents.SalesDeliveries = g.refs()
	}

	return out
}

// billGroup deduplicates bill numbers within one logical group. The first
// non-empty link for a bill wins.
type billGroup struct {
	label string
	seen  map[string]string
	order []string
}

func newBillGroup(label string) *billGroup {
	return &billGroup{label: label, seen: map[string]string{}}
}

func (g *billGroup) add(billNo, link string) {
	if billNo == "" {
		return
	}
	if existing, ok := g.seen[billNo]; ok {
		if existing == "" && link != "" {
			g.seen[billNo] = link
		}
		return
	}
	g.seen[billNo] = link
	g.order = append(g.order, billNo)
}

func (g *billGroup) refs() []BillRef {
	sort.Strings(g.order)
	out := make([]BillRef, 0, len(g.order))
	for _, bill := range g.order {
		out = append(out, BillRef{BillNo: bill, Label: g.label, LinkedOrder: g.seen[bill]})
	}
	return out
}
