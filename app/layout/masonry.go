package layout

// MasonryConfig controls the grid distribution.
type MasonryConfig struct {
	Columns     int
	ColumnWidth float64
	MinRatio    float64 // narrowest allowed aspect ratio (width / height)
	MaxRatio    float64 // widest allowed aspect ratio
	// ReflowOnResize opts in to re-deriving an item's height when its aspect
	// ratio changes after insertion (late-arriving image metadata). Off by
	// default: column assignment and heights stay as computed at insertion.
	ReflowOnResize bool
}

func DefaultMasonryConfig() MasonryConfig {
	return MasonryConfig{
		Columns:     2,
		ColumnWidth: 180,
		MinRatio:    0.5,
		MaxRatio:    2.0,
	}
}

// Placement is one item's slot in the grid. Column is immutable for the
// item's lifetime in the window; only Offset may be recomputed when earlier
// members of the same column change.
type Placement struct {
	ID     string
	Column int
	Offset float64
	Height float64
}

// Distributor assigns items to columns greedily by running height: each new
// item lands in the currently shortest column.
type Distributor struct {
	cfg     MasonryConfig
	heights []float64
	order   []string
	items   map[string]*Placement
}

func NewDistributor(cfg MasonryConfig) *Distributor {
	if cfg.Columns <= 0 {
		cfg.Columns = DefaultMasonryConfig().Columns
	}
	if cfg.ColumnWidth <= 0 {
		cfg.ColumnWidth = DefaultMasonryConfig().ColumnWidth
	}
	return &Distributor{
		cfg:     cfg,
		heights: make([]float64, cfg.Columns),
		items:   make(map[string]*Placement),
	}
}

// itemHeight derives an item's height from its aspect ratio, clamped to the
// configured ratio band. A non-positive ratio is treated as square.
func (d *Distributor) itemHeight(aspectRatio float64) float64 {
	if aspectRatio <= 0 {
		aspectRatio = 1
	}
	if d.cfg.MinRatio > 0 && aspectRatio < d.cfg.MinRatio {
		aspectRatio = d.cfg.MinRatio
	}
	if d.cfg.MaxRatio > 0 && aspectRatio > d.cfg.MaxRatio {
		aspectRatio = d.cfg.MaxRatio
	}
	return d.cfg.ColumnWidth / aspectRatio
}

// Add places a new item. Adding an already-placed ID returns the existing
// placement unchanged.
func (d *Distributor) Add(id string, aspectRatio float64) Placement {
	if p, ok := d.items[id]; ok {
		return *p
	}

	col := 0
	for i := 1; i < len(d.heights); i++ {
		if d.heights[i] < d.heights[col] {
			col = i
		}
	}

	p := &Placement{
		ID:     id,
		Column: col,
		Offset: d.heights[col],
		Height: d.itemHeight(aspectRatio),
	}
	d.heights[col] += p.Height
	d.order = append(d.order, id)
	d.items[id] = p
	return *p
}

// Recompute keeps only the surviving IDs (in window order) and refreshes the
// offsets of every survivor from its column's new running height. Column
// assignments are never changed; only offsets move when earlier members of
// the same column were trimmed away.
func (d *Distributor) Recompute(surviving []string) {
	kept := make(map[string]*Placement, len(surviving))
	order := make([]string, 0, len(surviving))

	for i := range d.heights {
		d.heights[i] = 0
	}

	for _, id := range surviving {
		p, ok := d.items[id]
		if !ok {
			continue
		}
		p.Offset = d.heights[p.Column]
		d.heights[p.Column] += p.Height
		kept[id] = p
		order = append(order, id)
	}

	d.items = kept
	d.order = order
}

// UpdateAspect applies a late aspect-ratio change. It is a no-op unless
// ReflowOnResize is enabled; when applied, downstream offsets in the item's
// column are refreshed.
func (d *Distributor) UpdateAspect(id string, aspectRatio float64) bool {
	if !d.cfg.ReflowOnResize {
		return false
	}
	p, ok := d.items[id]
	if !ok {
		return false
	}

	p.Height = d.itemHeight(aspectRatio)
	d.Recompute(d.order)
	return true
}

// Placement returns the slot for id, if placed.
func (d *Distributor) Placement(id string) (Placement, bool) {
	p, ok := d.items[id]
	if !ok {
		return Placement{}, false
	}
	return *p, true
}

// Placements returns all slots in insertion order.
func (d *Distributor) Placements() []Placement {
	out := make([]Placement, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.items[id])
	}
	return out
}

// ColumnHeights returns a copy of the per-column running heights.
func (d *Distributor) ColumnHeights() []float64 {
	out := make([]float64, len(d.heights))
	copy(out, d.heights)
	return out
}
