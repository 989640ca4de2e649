package progress

import (
	"github.com/sirupsen/logrus"
)

// LogMonitor writes events to a logrus logger.
type LogMonitor struct {
	Log logrus.FieldLogger
}

func NewLogMonitor(log logrus.FieldLogger) *LogMonitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogMonitor{Log: log}
}

func (m *LogMonitor) Report(e Event) {
	switch e := e.(type) {
	case Message:
		if e.Fatal {
			m.Log.Error(e.Text)
			return
		}
		m.Log.Info(e.Text)
	case Snapshot:
		m.Log.WithFields(logrus.Fields{
			"step":     e.Step,
			"time":     e.Time,
			"dt":       e.Dt,
			"particle": e.Particle,
			"x":        []float64{e.X.X, e.X.Y, e.X.Z},
			"v":        []float64{e.V.X, e.V.Y, e.V.Z},
			"a":        []float64{e.A.X, e.A.Y, e.A.Z},
		}).Info("step complete")
	case Restarted:
		m.Log.WithFields(logrus.Fields{
			"path": e.Path,
			"step": e.Step,
			"time": e.Time,
		}).Info("restarted from checkpoint")
	}
}

func (m *LogMonitor) ShouldStop(int) bool { return false }
