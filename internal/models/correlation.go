package models

// CorrelationMatrix is a square, symmetric matrix of Pearson coefficients indexed by Fields.
// A nil entry means the coefficient is undefined (zero variance or too few pairs).
type CorrelationMatrix struct {
	Fields []string     `json:"fields"`
	Values [][]*float64 `json:"values"`
}

// NewCorrelationMatrix allocates an all-undefined matrix over fields.
func NewCorrelationMatrix(fields []string) *CorrelationMatrix {
	values := make([][]*float64, len(fields))
	for i := range values {
		values[i] = make([]*float64, len(fields))
	}
	return &CorrelationMatrix{Fields: fields, Values: values}
}

// Set stores v at (i, j) and (j, i).
func (m *CorrelationMatrix) Set(i, j int, v float64) {
	a, b := v, v
	m.Values[i][j] = &a
	m.Values[j][i] = &b
}

// At returns the coefficient at (i, j) and whether it is defined.
func (m *CorrelationMatrix) At(i, j int) (float64, bool) {
	p := m.Values[i][j]
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Get looks a coefficient up by field names.
func (m *CorrelationMatrix) Get(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.At(i, j)
}

// Size returns the matrix dimension.
func (m *CorrelationMatrix) Size() int {
	return len(m.Fields)
}

func (m *CorrelationMatrix) index(field string) int {
	for i, f := range m.Fields {
		if f == field {
			return i
		}
	}
	return -1
}
