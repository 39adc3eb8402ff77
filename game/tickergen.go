package game

import "time"

type StdTickerCreator struct{}

func (StdTickerCreator) Create(d time.Duration) <-chan time.Time {
	return time.NewTicker(d).C
}
