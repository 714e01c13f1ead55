package table

// Mask is a boolean cross-section over a stock universe.
// Combination rule: And/Or evaluate over the receiver's universe and
// treat stocks missing from the other side as false.
type Mask struct {
	stocks []string
	values []bool
	idx    map[string]int
}

// NewMask creates an all-false mask over the given stocks.
func NewMask(stocks []string) *Mask {
	m := &Mask{
		stocks: append([]string(nil), stocks...),
		values: make([]bool, len(stocks)),
		idx:    make(map[string]int, len(stocks)),
	}
	for i, s := range m.stocks {
		m.idx[s] = i
	}
	return m
}

// NewMaskAll creates an all-true mask over the given stocks.
// 歷史不足時的「視為通過」遮罩
func NewMaskAll(stocks []string) *Mask {
	m := NewMask(stocks)
	for i := range m.values {
		m.values[i] = true
	}
	return m
}

// Stocks returns the mask's universe.
func (m *Mask) Stocks() []string { return m.stocks }

// Len returns the universe size.
func (m *Mask) Len() int { return len(m.stocks) }

// Contains reports whether the stock is present and true.
func (m *Mask) Contains(stock string) bool {
	i, ok := m.idx[stock]
	return ok && m.values[i]
}

// Set assigns the flag for a stock. Unknown stocks are ignored.
func (m *Mask) Set(stock string, v bool) {
	if i, ok := m.idx[stock]; ok {
		m.values[i] = v
	}
}

// Count returns the number of true entries.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.values {
		if v {
			n++
		}
	}
	return n
}

// TrueStocks returns the stocks flagged true, in universe order.
func (m *Mask) TrueStocks() []string {
	out := make([]string, 0, len(m.stocks))
	for i, v := range m.values {
		if v {
			out = append(out, m.stocks[i])
		}
	}
	return out
}

// Reindex returns a mask over the target universe with false fill for
// stocks the receiver does not cover.
func (m *Mask) Reindex(stocks []string) *Mask {
	out := NewMask(stocks)
	for i, s := range stocks {
		if j, ok := m.idx[s]; ok {
			out.values[i] = m.values[j]
		}
	}
	return out
}

// And returns the conjunction over the receiver's universe.
func (m *Mask) And(other *Mask) *Mask {
	out := NewMask(m.stocks)
	for i, s := range m.stocks {
		out.values[i] = m.values[i] && other.Contains(s)
	}
	return out
}

// Or returns the disjunction over the receiver's universe.
func (m *Mask) Or(other *Mask) *Mask {
	out := NewMask(m.stocks)
	for i, s := range m.stocks {
		out.values[i] = m.values[i] || other.Contains(s)
	}
	return out
}

// Not returns the negation over the receiver's universe.
func (m *Mask) Not() *Mask {
	out := NewMask(m.stocks)
	for i := range m.values {
		out.values[i] = !m.values[i]
	}
	return out
}

// AndAll folds And over the given masks starting from the receiver.
func (m *Mask) AndAll(others ...*Mask) *Mask {
	out := m
	for _, o := range others {
		out = out.And(o)
	}
	return out
}
