package status

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mtogate/mtogate/internal/classify"
	"github.com/mtogate/mtogate/internal/reader"
)

// variantKey is the unit of aggregation: material code plus the
// auxiliary-property id. Forms that omit the aux id decode it as 0, which
// merges all variants of the code under one line; that matches the upstream.
type variantKey struct {
	code string
	aux  int64
}

// agg holds every aggregation dictionary built from one bundle.
type agg struct {
	delivered   map[variantKey]decimal.Decimal // Σ sales_delivery.real_qty
	received    map[variantKey]decimal.Decimal // Σ production_receipt.real_qty
	mustReceive map[variantKey]decimal.Decimal // Σ production_receipt.must_qty
	purchRecv   map[variantKey]decimal.Decimal // Σ purchase_receipt.real_qty, standard bills only
	subRecv     map[variantKey]decimal.Decimal // Σ purchase_receipt.real_qty, subcontract bills

	bomNeed   map[variantKey]decimal.Decimal
	bomPicked map[variantKey]decimal.Decimal

	salesQty   map[variantKey]decimal.Decimal
	poOrder    map[variantKey]decimal.Decimal
	poStockIn  map[variantKey]decimal.Decimal
	subOrder   map[string]decimal.Decimal // subcontract orders carry no aux id
	subStockIn map[string]decimal.Decimal

	pickApp    map[string]decimal.Decimal // material-code only, no variant
	pickActual map[string]decimal.Decimal
	hasPicking map[string]bool

	names map[string]string
	specs map[string]string
}

func addQty(m map[variantKey]decimal.Decimal, k variantKey, q decimal.Decimal) {
	m[k] = m[k].Add(q)
}

func buildAgg(b *bundle) *agg {
	a := &agg{
		delivered:   map[variantKey]decimal.Decimal{},
		received:    map[variantKey]decimal.Decimal{},
		mustReceive: map[variantKey]decimal.Decimal{},
		purchRecv:   map[variantKey]decimal.Decimal{},
		subRecv:     map[variantKey]decimal.Decimal{},
		bomNeed:     map[variantKey]decimal.Decimal{},
		bomPicked:   map[variantKey]decimal.Decimal{},
		salesQty:    map[variantKey]decimal.Decimal{},
		poOrder:     map[variantKey]decimal.Decimal{},
		poStockIn:   map[variantKey]decimal.Decimal{},
		subOrder:    map[string]decimal.Decimal{},
		subStockIn:  map[string]decimal.Decimal{},
		pickApp:     map[string]decimal.Decimal{},
		pickActual:  map[string]decimal.Decimal{},
		hasPicking:  map[string]bool{},
		names:       map[string]string{},
		specs:       map[string]string{},
	}

	for _, d := range b.deliveries {
		addQty(a.delivered, variantKey{d.MaterialCode, d.AuxPropID}, d.RealQty)
	}
	for _, r := range b.prodRcpts {
		k := variantKey{r.MaterialCode, r.AuxPropID}
		addQty(a.received, k, r.RealQty)
		addQty(a.mustReceive, k, r.MustQty)
	}
	for _, r := range b.poRcpts {
		k := variantKey{r.MaterialCode, r.AuxPropID}
		if r.BillType == reader.BillTypeSubcontract {
			addQty(a.subRecv, k, r.RealQty)
		} else {
			addQty(a.purchRecv, k, r.RealQty)
		}
	}
	for _, bm := range b.boms {
		k := variantKey{bm.MaterialCode, bm.AuxPropID}
		addQty(a.bomNeed, k, bm.NeedQty)
		addQty(a.bomPicked, k, bm.PickedQty)
		a.note(bm.MaterialCode, bm.MaterialName, bm.Specification)
	}
	for _, so := range b.soLines {
		addQty(a.salesQty, variantKey{so.MaterialCode, so.AuxPropID}, so.Qty)
		a.note(so.MaterialCode, so.MaterialName, "")
	}
	for _, po := range b.poLines {
		k := variantKey{po.MaterialCode, po.AuxPropID}
		addQty(a.poOrder, k, po.OrderQty)
		addQty(a.poStockIn, k, po.StockInQty)
		a.note(po.MaterialCode, po.MaterialName, "")
	}
	for _, so := range b.subOrders {
		a.subOrder[so.MaterialCode] = a.subOrder[so.MaterialCode].Add(so.OrderQty)
		a.subStockIn[so.MaterialCode] = a.subStockIn[so.MaterialCode].Add(so.StockInQty)
	}
	for _, p := range b.pickings {
		a.pickApp[p.MaterialCode] = a.pickApp[p.MaterialCode].Add(p.AppQty)
		a.pickActual[p.MaterialCode] = a.pickActual[p.MaterialCode].Add(p.ActualQty)
		a.hasPicking[p.MaterialCode] = true
	}

	return a
}

func (a *agg) note(code, name, spec string) {
	if name != "" && a.names[code] == "" {
		a.names[code] = name
	}
	if spec != "" && a.specs[code] == "" {
		a.specs[code] = spec
	}
}

// candidates returns every variant key that may become a child line: BOM
// component lines (the parent line, material_type 1, is not a child), sales
// order and delivery lines, purchase order lines, and a material-level
// fallback for picking rows that match no other source.
func candidateKeys(b *bundle) []variantKey {
	seen := map[variantKey]bool{}
	materials := map[string]bool{}
	var keys []variantKey

	add := func(k variantKey) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
		materials[k.code] = true
	}

	for _, bm := range b.boms {
		if bm.MaterialType == 1 {
			continue
		}
		add(variantKey{bm.MaterialCode, bm.AuxPropID})
	}
	for _, so := range b.soLines {
		add(variantKey{so.MaterialCode, so.AuxPropID})
	}
	for _, d := range b.deliveries {
		add(variantKey{d.MaterialCode, d.AuxPropID})
	}
	for _, po := range b.poLines {
		add(variantKey{po.MaterialCode, po.AuxPropID})
	}
	for _, p := range b.pickings {
		if !materials[p.MaterialCode] {
			add(variantKey{p.MaterialCode, 0})
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].code != keys[j].code {
			return keys[i].code < keys[j].code
		}
		return keys[i].aux < keys[j].aux
	})
	return keys
}

// assemble turns a bundle into the consolidated result. Children are sorted
// ascending by (material_code, aux_prop_id) so identical inputs produce
// identical outputs.
func assemble(mto string, b *bundle, cls *classify.Classifier) Result {
	a := buildAgg(b)

	res := Result{Parent: buildParent(mto, b, cls)}

	for _, k := range candidateKeys(b) {
		class, ok := cls.Classify(k.code)
		if !ok {
			continue
		}
		res.Children = append(res.Children, buildChild(k, class, a))
	}
	return res
}

func buildParent(mto string, b *bundle, cls *classify.Classifier) Parent {
	p := Parent{MTO: mto}

	// Prefer the manufacturing order for the finished product; fall back to
	// the first order on the MTO.
	for _, o := range b.orders {
		if c, ok := cls.Classify(o.MaterialCode); ok && c.SourceForm == "sales-order" {
			fillParentOrder(&p, o)
			break
		}
	}
	if p.BillNo == "" && len(b.orders) > 0 {
		fillParentOrder(&p, b.orders[0])
	}

	for _, so := range b.soLines {
		if p.CustomerName == "" && so.CustomerName != "" {
			p.CustomerName = so.CustomerName
		}
		if so.DeliveryDate != "" && (p.DeliveryDate == "" || so.DeliveryDate < p.DeliveryDate) {
			p.DeliveryDate = so.DeliveryDate
		}
	}
	return p
}

func fillParentOrder(p *Parent, o reader.ProductionOrder) {
	p.BillNo = o.BillNo
	p.MaterialCode = o.MaterialCode
	p.MaterialName = o.MaterialName
	p.Specification = o.Specification
	p.Workshop = o.Workshop
	p.Qty = o.Qty
	p.Status = o.Status
}

func buildChild(k variantKey, class classify.Class, a *agg) Child {
	c := Child{
		MaterialCode:  k.code,
		AuxPropID:     k.aux,
		MaterialName:  a.names[k.code],
		Specification: a.specs[k.code],
		MaterialClass: class.ID,
		DeliveredQty:  a.delivered[k],
	}

	// Picked quantity prefers the picking form; BOM picked totals stand in
	// when no picking rows exist for the material.
	picked := a.pickActual[k.code]
	if !a.hasPicking[k.code] {
		picked = a.bomPicked[k]
	}
	need := a.bomNeed[k]

	c.PickedQty = picked
	c.UnpickedQty = need.Sub(picked)
	c.OverPick = c.UnpickedQty.IsNegative()

	// Column recipes key off the class's source form so operator-defined
	// classes inherit the recipe of whichever form sources them.
	switch class.SourceForm {
	case "sales-order": // finished goods
		required := a.salesQty[k]
		received := a.received[k]
		c.RequiredQty = required
		c.SalesOrderQty = ptr(required)
		c.ProdInstockRealQty = ptr(received)
		c.PickActualQty = ptr(picked)

	case "production-receipt": // self-made parts
		required := a.mustReceive[k]
		if required.IsZero() {
			required = a.pickApp[k.code]
		}
		c.RequiredQty = required
		c.ProdInstockMustQty = ptr(a.mustReceive[k])
		c.ProdInstockRealQty = ptr(a.received[k])
		c.PickActualQty = ptr(picked)

	case "purchase-order": // purchased parts
		// Source priority: purchase order, subcontract order, BOM,
		// picking. The first source with a non-zero requirement wins.
		required, received := a.poOrder[k], a.poStockIn[k]
		if required.IsZero() {
			required, received = a.subOrder[k.code], a.subStockIn[k.code]
		}
		if required.IsZero() {
			required, received = a.bomNeed[k], a.bomPicked[k]
		}
		if required.IsZero() {
			required, received = a.pickApp[k.code], a.pickActual[k.code]
		}
		c.RequiredQty = required
		c.PurchaseOrderQty = ptr(required)
		c.PurchaseStockInQty = ptr(received)
		c.PickActualQty = ptr(picked)

	default:
		c.RequiredQty = need
	}

	return c
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
