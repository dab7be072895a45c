package finance

// Window is the number of trailing months averaged into the forecast base.
const Window = 3

type Projection struct {
	Step   int   `json:"step"`
	Amount int64 `json:"amount"`
}

type Forecast struct {
	Base        float64      `json:"base"`
	Growth      float64      `json:"growth"`
	Projections []Projection `json:"projections"`
}

// Project forecasts the next horizon months from chronologically ordered
// monthly totals. The base is the moving average of the last Window months
// and growth is the change between the last two months, applied linearly.
func Project(history []int64, horizon int) Forecast {
	f := Forecast{Projections: []Projection{}}
	if len(history) == 0 || horizon <= 0 {
		return f
	}

	start := len(history) - Window
	if start < 0 {
		start = 0
	}
	recent := history[start:]
	f.Base = float64(Sum(recent...)) / float64(len(recent))

	if n := len(history); n >= 2 && history[n-2] != 0 {
		f.Growth = float64(history[n-1]-history[n-2]) / float64(history[n-2])
	}

	for k := 1; k <= horizon; k++ {
		v := f.Base * (1 + f.Growth*float64(k))
		if v < 0 {
			v = 0
		}
		f.Projections = append(f.Projections, Projection{Step: k, Amount: Round(v)})
	}
	return f
}
