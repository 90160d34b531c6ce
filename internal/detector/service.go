package detector

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
)

// ServiceIdleTimeout is how long the detector process may sit unused before
// it is shut down. It is restarted on the next frame.
const ServiceIdleTimeout = 30 * time.Second

const serviceScriptName = "yolo_service.py"

// ServiceDetector implements Detector using an external detector process,
// typically a Python ultralytics script.
//
// Each request is one JSON header line {"confidence":c,"size":n,"model":m}
// followed by n bytes of JPEG. Each reply is one JSON line
// {"detections":[{"class":..,"confidence":..,"box":[x1,y1,x2,y2]}],"error":".."}.
type ServiceDetector struct {
	config    Config
	classes   []string
	script    string
	python    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewServiceDetector locates the service script. The process itself is
// started lazily on first detection.
func NewServiceDetector(cfg Config, classes []string) (*ServiceDetector, error) {
	cfg.applyDefaults()

	script := cfg.ServiceScript
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, errors.Wrapf(ErrModelLoad, "%s not found", serviceScriptName)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "service script: %v", err)
	}

	python := cfg.ServicePython
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &ServiceDetector{
		config:  cfg,
		classes: classes,
		script:  script,
		python:  python,
	}, nil
}

type serviceRequest struct {
	Confidence float64 `json:"confidence"`
	Size       int     `json:"size"`
	Model      string  `json:"model"`
}

type serviceDetection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

type serviceResponse struct {
	Detections []serviceDetection `json:"detections"`
	Error      string             `json:"error"`
}

// Detect sends frame to the service and parses its reply.
func (d *ServiceDetector) Detect(frame *gocv.Mat, threshold float64) ([]detection.Detection, error) {
	if err := validateFrame(frame); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, errors.Wrap(ErrInference, err.Error())
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "encode frame: %v", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	header, err := json.Marshal(serviceRequest{Confidence: threshold, Size: len(data), Model: d.config.ModelPath})
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "encode header: %v", err)
	}
	if _, err := d.stdin.Write(append(header, '\n')); err != nil {
		d.shutdown()
		return nil, errors.Wrapf(ErrInference, "write header: %v", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.shutdown()
		return nil, errors.Wrapf(ErrInference, "write frame: %v", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		d.shutdown()
		return nil, errors.Wrapf(ErrInference, "read response: %v", err)
	}

	var response serviceResponse
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, errors.Wrapf(ErrInference, "parse response: %v", err)
	}
	if response.Error != "" {
		return nil, errors.Wrap(ErrInference, response.Error)
	}

	result := response.detections(threshold, frame.Cols(), frame.Rows())

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// detections converts the reply in the order the service sent it. The
// service has already run suppression and sorting.
func (r serviceResponse) detections(threshold float64, width, height int) []detection.Detection {
	out := make([]detection.Detection, 0, len(r.Detections))
	for _, sd := range r.Detections {
		if sd.Confidence < threshold {
			continue
		}
		box := detection.Box{
			X1: int(sd.Box[0]), Y1: int(sd.Box[1]),
			X2: int(sd.Box[2]), Y2: int(sd.Box[3]),
		}.Clamp(width, height)
		det, err := detection.New(sd.Class, sd.Confidence, box)
		if err != nil {
			continue
		}
		out = append(out, det)
	}
	return out
}

// Classes returns the class vocabulary.
func (d *ServiceDetector) Classes() []string {
	return d.classes
}

// Close shuts down the service process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.python, d.script, "--model", d.config.ModelPath)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "create stdin pipe")
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "create stdout pipe")
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return errors.Wrap(err, "start detector service")
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	d.config.Logger.Infow("started detector service", "script", d.script, "python", d.python)
	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(ServiceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.config.Logger.Debugw("detector service exited", "error", err)
		}
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScriptName),
		filepath.Join("..", "scripts", serviceScriptName),
		filepath.Join(execDir, "scripts", serviceScriptName),
		filepath.Join(os.Getenv("HOME"), ".detecta", "scripts", serviceScriptName),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory or the executable.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		".venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".detecta/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
