// queuesim builds the message queue from park data on disk and prints it,
// optionally playing it against the headless driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/themeparkwaits/internal/config"
	"github.com/coreman2200/themeparkwaits/internal/display"
	"github.com/coreman2200/themeparkwaits/internal/driver/fake"
	"github.com/coreman2200/themeparkwaits/internal/model"
	"github.com/coreman2200/themeparkwaits/internal/queue"
	"github.com/coreman2200/themeparkwaits/internal/queuetimes"
	"github.com/coreman2200/themeparkwaits/internal/render"
)

// instant scrolls without waiting.
type instant struct{ *config.Settings }

func (instant) ScrollSpeed() time.Duration { return 0 }

func main() {
	var (
		dataDir    = flag.String("data", "", "directory holding parks.json and parks/{id}/queue_times.json")
		parkIDs    = flag.String("parks", "", "comma separated park ids, in display order")
		sortMode   = flag.String("sort", "alphabetical", "alphabetical | max_wait | min_wait")
		group      = flag.Bool("group", false, "group rides by park")
		skipMeet   = flag.Bool("skip-meet", false, "leave out meet and greets")
		skipClosed = flag.Bool("skip-closed", false, "leave out rides that are not open")
		vacation   = flag.String("vacation", "", "vacation as name:YYYY-MM-DD")
		doRender   = flag.Bool("render", false, "play one cycle against the headless driver")
		logLevel   = flag.String("log-level", "info", "trace | debug | info | warn | error")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if *dataDir == "" {
		log.Fatal().Msg("Provide -data with a parks directory")
	}

	settings := config.New(map[string]any{
		"selected_park_ids": *parkIDs,
		"sort_mode":         *sortMode,
		"group_by_park":     *group,
		"skip_meet":         *skipMeet,
		"skip_closed":       *skipClosed,
	})
	if *vacation != "" {
		v, err := parseVacation(*vacation)
		if err != nil {
			log.Fatal().Err(err).Msg("Bad -vacation")
		}
		settings.SetVacation(v)
	}

	ctx := context.Background()
	src := queuetimes.Dir(*dataDir)
	parks, err := src.Parks(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Reading parks")
	}
	list := model.NewParkList(parks)
	if err := list.Select(settings.SelectedParkIDs()...); err != nil {
		log.Warn().Err(err).Msg("Selecting parks")
	}
	for _, p := range list.SelectedParks() {
		rides, err := src.Rides(ctx, p.ID)
		if err != nil {
			log.Warn().Err(err).Int("park", p.ID).Msg("Reading rides")
			continue
		}
		p.SetRides(rides)
	}

	drv := fake.New(log.Logger)
	eng, err := render.NewEngine(render.Dimensions{W: 64, H: 32}, drv)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating render engine")
	}
	m := display.NewMatrix(eng, instant{settings}, log.Logger)
	m.Timing = display.Timing{}

	q := queue.New(m, log.Logger)
	q.AddSplash(4 * time.Second)
	q.AddVacationCountdown(settings.Vacation())
	q.AddRides(list.SelectedParks(), queue.RideOptions{
		SkipMeet:    settings.SkipMeet(),
		SkipClosed:  settings.SkipClosed(),
		Sort:        queue.ParseSortMode(settings.SortMode()),
		GroupByPark: settings.GroupByPark(),
	})
	if cur := list.Current(); cur.IsValid() {
		q.AddRequiredAttribution(cur.Name)
	}

	for i, op := range q.Operations() {
		fmt.Printf("%3d  %s\n", i, op)
	}

	if !*doRender {
		return
	}
	q.Delay = 0
	start := time.Now()
	for i := q.Len(); i > 0; i-- {
		if err := q.Show(ctx); err != nil {
			log.Fatal().Err(err).Msg("Show")
		}
	}
	fmt.Printf("rendered %d frames in %s\n", drv.Frames(), time.Since(start).Round(time.Millisecond))
}

func parseVacation(s string) (model.Vacation, error) {
	name, date, ok := strings.Cut(s, ":")
	if !ok {
		return model.Vacation{}, fmt.Errorf("want name:YYYY-MM-DD, got %q", s)
	}
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return model.Vacation{}, fmt.Errorf("want YYYY-MM-DD, got %q", date)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return model.Vacation{}, fmt.Errorf("date %q: %w", date, err)
		}
		n[i] = v
	}
	return model.Vacation{Name: name, Year: n[0], Month: n[1], Day: n[2]}, nil
}
