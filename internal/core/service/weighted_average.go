package service

type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float32 | ~float64
}

// WeightedAverage keeps an exponentially smoothed running statistic of a
// value stream: average' = average*(1-w) + sample*w. The first sample seeds
// average, min, max and last directly. Average/Min/Max/Last are undefined
// until Count() > 0; callers own that check.
type WeightedAverage[T Number] struct {
	weight  float64
	average float64
	last    T
	min     T
	max     T
	count   uint
}

func NewWeightedAverage[T Number](weightPercent uint) *WeightedAverage[T] {
	return &WeightedAverage[T]{
		weight: float64(weightPercent) / 100,
	}
}

func (w *WeightedAverage[T]) AddNumber(value T) {
	if w.count == 0 {
		w.average = float64(value)
		w.min = value
		w.max = value
	} else {
		w.average = w.average*(1-w.weight) + float64(value)*w.weight
		if value < w.min {
			w.min = value
		}
		if value > w.max {
			w.max = value
		}
	}
	w.last = value
	w.count++
}

func (w *WeightedAverage[T]) Average() T {
	return T(w.average)
}

func (w *WeightedAverage[T]) Min() T {
	return w.min
}

func (w *WeightedAverage[T]) Max() T {
	return w.max
}

func (w *WeightedAverage[T]) Last() T {
	return w.last
}

func (w *WeightedAverage[T]) Count() uint {
	return w.count
}
