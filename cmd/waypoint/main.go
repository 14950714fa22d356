package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/boundary"
	"github.com/oomph-ac/waypoint/collision"
	"github.com/oomph-ac/waypoint/frame"
	"github.com/oomph-ac/waypoint/mesh"
	"github.com/oomph-ac/waypoint/navigation"
	"github.com/oomph-ac/waypoint/physics"
	"github.com/oomph-ac/waypoint/portal"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/oomph-ac/waypoint/settings"
	"github.com/oomph-ac/waypoint/temporal"
	"github.com/oomph-ac/waypoint/virtual"
	"github.com/sirupsen/logrus"
)

// The following program walks a viewer through a small virtual scene: it loads the configured
// time variants and collision mesh, walks into the walls and switches variants mid-walk.
func main() {
	path := "waypoint.toml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	s := readSettings(log, path)
	if lvl, err := logrus.ParseLevel(s.Log.Level); err == nil {
		log.SetLevel(lvl)
	}

	if s.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: s.Sentry.DSN}); err != nil {
			log.Errorf("unable to initialize sentry: %v", err)
		}
		defer sentry.Flush(time.Second * 5)
	}

	if os.Getenv("WAYPOINT_STATSVIEW") != "" {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr("localhost:8080"))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, log, s); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("waypoint: %v", err)
	}
}

func readSettings(log *logrus.Logger, path string) settings.Settings {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := settings.SaveDefault(path); err != nil {
			log.Fatalf("unable to create default settings: %v", err)
		}
		log.Infof("created default settings at %s", path)
	}
	s, err := settings.Load(path)
	if err != nil {
		log.Fatalf("unable to load settings: %v", err)
	}
	return s
}

func run(ctx context.Context, log *logrus.Logger, s settings.Settings) error {
	world := physics.NewVoxelWorld()
	graph := virtual.NewGraph(log.WithField("component", "scene"), world, nil)
	graph.Latency = 50 * time.Millisecond
	for _, v := range s.Temporal.Variants {
		graph.Register(v.Source, virtual.Asset{Boxes: s.VariantBoxes(v.ID)})
	}
	graph.Register(s.Collision.MeshPath, virtual.Asset{Boxes: s.CollisionBoxes()})

	// The physics backend warms up after the scene starts loading.
	time.AfterFunc(250*time.Millisecond, world.Start)
	defer world.Stop()

	barrier := frame.NewBarrier()
	opts, err := s.TemporalOptions()
	if err != nil {
		return err
	}
	captures, err := temporal.NewManager(log.WithField("component", "temporal"), graph, barrier, nil, opts)
	if err != nil {
		return err
	}
	captures.SetHandler(captureHandler{log: log})

	meshArb := mesh.NewArbiter(log.WithField("component", "mesh"), world, nil, s.MeshOptions())
	if err := meshArb.LoadMesh(ctx, graph, scene.Descriptor{Name: "collision", Path: s.Collision.MeshPath}); err != nil {
		log.Warnf("continuing without mesh collision: %v", err)
	}

	walls := boundary.NewStore()
	walls.Load(s.Segments())
	portals := portal.NewArbiter(log.WithField("component", "portal"))
	portals.Handle(portalHandler{log: log})
	for _, p := range s.PortalList() {
		portals.Add(p)
	}

	chain := collision.NewChain(
		collision.Entry{Name: "mesh", Arbiter: meshArb},
		collision.Entry{Name: "boundary", Arbiter: boundary.NewArbiter(walls)},
		collision.Entry{Name: "portal", Arbiter: portals},
	)
	nav := navigation.New(log.WithField("component", "navigation"), chain, s.Spawn(), s.NavigationOptions(), portals)

	if _, err := captures.Initialize(ctx); err != nil {
		return err
	}

	rate := s.Frame.Rate
	if rate <= 0 {
		rate = 60
	}
	script := newScript(rate)
	loop := frame.Loop{Interval: time.Second / time.Duration(rate), Barrier: barrier}
	err = loop.Run(ctx, func(dt float64) bool {
		in, ok := script.step(nav, func(direction int) {
			go func() {
				if err := captures.Cycle(ctx, direction); err != nil {
					log.Warnf("variant switch: %v", err)
				}
			}()
		})
		if !ok {
			return false
		}
		res := nav.Tick(dt, in)
		if res.Blocked {
			fields := logrus.Fields{"source": res.Verdict.Source}
			if res.Verdict.Data != nil {
				for el := res.Verdict.Data.Front(); el != nil; el = el.Next() {
					fields[el.Key] = el.Value
				}
			}
			log.WithFields(fields).Debug("move blocked")
		}
		return true
	})

	snap := nav.Snapshot()
	active, _ := captures.ActiveVariant()
	log.WithFields(logrus.Fields{
		"position": snap.Position,
		"yaw":      snap.Yaw,
		"variant":  active.Label,
		"mesh":     meshArb.Enabled(),
	}).Info("walk finished")
	return err
}

// script drives the viewer for a fixed number of frames: walk north into the collision mesh,
// switch variant, turn around and sprint into the south wall, then switch back.
type script struct {
	rate  int
	frame int
}

func newScript(rate int) *script {
	return &script{rate: rate}
}

func (s *script) step(nav *navigation.Navigator, cycle func(direction int)) (navigation.Input, bool) {
	s.frame++
	seconds := float64(s.frame) / float64(s.rate)

	in := navigation.Input{Move: mgl64.Vec2{0, 1}}
	switch {
	case s.frame == s.rate*2:
		cycle(1)
	case s.frame == s.rate*5:
		nav.Look(180, 0)
	case s.frame == s.rate*8:
		cycle(-1)
	case seconds > 12:
		return navigation.Input{}, false
	}
	if seconds > 5 {
		in.Sprint = true
	}
	return in, true
}

type captureHandler struct {
	temporal.NopHandler
	log logrus.FieldLogger
}

func (h captureHandler) HandleInitialize(variants []temporal.Variant, active temporal.Variant) {
	labels := make([]string, 0, len(variants))
	for _, v := range variants {
		labels = append(labels, v.Label)
	}
	h.log.Infof("time toggle: %v, showing %s", labels, active.Label)
}

func (h captureHandler) HandleSwitch(from, to temporal.Variant) {
	h.log.Infof("now showing %s (was %s)", to.Label, from.Label)
}

func (h captureHandler) HandleLoadFailed(v temporal.Variant, err error) {
	h.log.Warnf("%s is unavailable: %v", v.Label, err)
}

type portalHandler struct {
	portal.NopHandler
	log logrus.FieldLogger
}

func (h portalHandler) HandleEnter(p portal.Portal) {
	h.log.Infof("entered portal %s", p.Name)
}
