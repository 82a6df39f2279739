// Package joborder parses the XML job orders that tell the simulator which
// task to run, on which inputs, and where to put the products.
package joborder

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ChuLiYu/procsim/internal/orbit"
	"github.com/ChuLiYu/procsim/pkg/types"
)

// Task names understood by the simulator
const (
	TaskSlicer = "L0_Slicer"
	TaskFramer = "L1_Framer"
)

var (
	ErrNoTasks     = errors.New("joborder: no Ipf_Proc entries")
	ErrUnknownTask = errors.New("joborder: unknown task name")
	ErrNoOutputs   = errors.New("joborder: task has no outputs")
)

// JobOrder is a parsed job order
type JobOrder struct {
	Tasks []Task
}

// Task is one Ipf_Proc entry
type Task struct {
	Name        string
	Sensing     *types.Window // nil when the job order leaves it to the inputs
	Inputs      []Input
	Outputs     []Output
	SliceNumber int // explicit starting cell id, 0 when absent
}

// Input is one input file reference
type Input struct {
	FileType string
	FileName string
}

// Output describes where products of one type go
type Output struct {
	FileType string
	FileDir  string
	Baseline int
}

type xmlJobOrder struct {
	XMLName xml.Name  `xml:"Ipf_Job_Order"`
	Procs   []xmlProc `xml:"List_of_Ipf_Procs>Ipf_Proc"`
}

type xmlProc struct {
	TaskName string `xml:"Task_Name"`
	Sensing  *struct {
		Start string `xml:"Start"`
		Stop  string `xml:"Stop"`
	} `xml:"Sensing_Time"`
	Inputs []struct {
		FileType string `xml:"File_Type"`
		FileName string `xml:"File_Name"`
	} `xml:"List_of_Inputs>Input"`
	Outputs []struct {
		FileType string `xml:"File_Type"`
		FileDir  string `xml:"File_Dir"`
		Baseline int    `xml:"Baseline"`
	} `xml:"List_of_Outputs>Output"`
	SliceNumber int `xml:"Slice_Number"`
}

// Load opens and parses the job order at path
func Load(path string) (*JobOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job order: %w", err)
	}
	defer f.Close()

	jo, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jo, nil
}

// Parse decodes a job order and checks every task is runnable
func Parse(r io.Reader) (*JobOrder, error) {
	var doc xmlJobOrder
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode job order: %w", err)
	}
	if len(doc.Procs) == 0 {
		return nil, ErrNoTasks
	}

	jo := &JobOrder{}
	for i, p := range doc.Procs {
		task, err := convert(p)
		if err != nil {
			return nil, fmt.Errorf("Ipf_Proc[%d]: %w", i, err)
		}
		jo.Tasks = append(jo.Tasks, task)
	}
	return jo, nil
}

func convert(p xmlProc) (Task, error) {
	task := Task{
		Name:        strings.TrimSpace(p.TaskName),
		SliceNumber: p.SliceNumber,
	}
	switch task.Name {
	case TaskSlicer, TaskFramer:
	default:
		return Task{}, fmt.Errorf("%w: %q", ErrUnknownTask, task.Name)
	}
	if task.SliceNumber < 0 {
		return Task{}, fmt.Errorf("Slice_Number must not be negative, got %d", task.SliceNumber)
	}

	if p.Sensing != nil && (p.Sensing.Start != "" || p.Sensing.Stop != "") {
		w, err := parseWindow(p.Sensing.Start, p.Sensing.Stop)
		if err != nil {
			return Task{}, fmt.Errorf("Sensing_Time: %w", err)
		}
		task.Sensing = &w
	}

	for _, in := range p.Inputs {
		task.Inputs = append(task.Inputs, Input{
			FileType: strings.TrimSpace(in.FileType),
			FileName: strings.TrimSpace(in.FileName),
		})
	}
	for _, out := range p.Outputs {
		task.Outputs = append(task.Outputs, Output{
			FileType: strings.TrimSpace(out.FileType),
			FileDir:  strings.TrimSpace(out.FileDir),
			Baseline: out.Baseline,
		})
	}
	if len(task.Outputs) == 0 {
		return Task{}, ErrNoOutputs
	}
	return task, nil
}

func parseWindow(start, stop string) (types.Window, error) {
	var w types.Window
	var err error
	if w.Start, err = orbit.ParseUTC(start); err != nil {
		return w, fmt.Errorf("start: %w", err)
	}
	if w.Stop, err = orbit.ParseUTC(stop); err != nil {
		return w, fmt.Errorf("stop: %w", err)
	}
	return w, nil
}

// InputFiles returns the file names of inputs, optionally of one type
func (t Task) InputFiles(fileType string) []string {
	var names []string
	for _, in := range t.Inputs {
		if fileType == "" || in.FileType == fileType {
			names = append(names, in.FileName)
		}
	}
	return names
}

// Output returns the output entry for fileType, or the first one when no
// entry matches
func (t Task) Output(fileType string) Output {
	for _, out := range t.Outputs {
		if out.FileType == fileType {
			return out
		}
	}
	return t.Outputs[0]
}

// SensingWindow returns the job-order sensing time if set
func (t Task) SensingWindow() (types.Window, bool) {
	if t.Sensing == nil {
		return types.Window{}, false
	}
	return *t.Sensing, true
}

