// bench.go runs a round of quantum key negotiation for each entry in the
// cartesian product of a collection of different tuning parameters, e.g.
// protocol and simulated channel noise, and outputs a CSV of relevant
// statistics for each different combination, e.g. observed QBER and final key
// length.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/template"

	flag "github.com/spf13/pflag"

	"github.com/quantsec/qsc/qkd"
	"github.com/quantsec/qsc/quantum"
)

var (
	protocols = flag.StringSlice("protocol", []string{"bb84"},
		"The key negotiation protocols to run: bb84, e91 or sarg04.")
	keyLens = flag.IntSlice("keyLen", []int{qkd.DefaultKeyLength},
		"The requested final key sizes, in bits.")
	noises = flag.Float64Slice("noise", []float64{0},
		"The channel bit-flip probabilities to simulate.")
	reconcilers = flag.StringSlice("reconciler", []string{"majority"},
		"The error-correction passes to use: majority or winnow.")
)

var (
	inputs  = []string{"protocol", "keyLen", "noise", "reconciler"}
	columns = []string{"Protocol", "KeyLen", "Noise", "Reconciler",
		"RawBits", "SiftedBits", "QBER", "Fidelity", "FinalKeyBits", "Succeeded"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Protocol   string
	KeyLen     int
	Noise      float64
	Reconciler string

	// Fields corresponding to experiment results
	RawBits      int
	SiftedBits   int
	QBER         float64
	Fidelity     float64
	FinalKeyBits int
	Succeeded    bool
}

func main() {
	flag.Parse()
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Protocol:   args[inpIndex("protocol")].(string),
			KeyLen:     args[inpIndex("keyLen")].(int),
			Noise:      args[inpIndex("noise")].(float64),
			Reconciler: args[inpIndex("reconciler")].(string),
		}
		if err := bench(exp); err != nil {
			log.Printf("Benching %v: %v", exp, err)
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.Fatalf("BUG: could not fill in line template: %v", err)
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(exp *Experiment) error {
	proto, err := parseProtocol(exp.Protocol)
	if err != nil {
		return err
	}
	rec, err := parseReconciler(exp.Reconciler)
	if err != nil {
		return err
	}
	core, err := quantum.New(quantum.DefaultConfig(), nil)
	if err != nil {
		return err
	}
	sess, err := qkd.NewSession(qkd.SessionOpts{
		Protocol:   proto,
		KeyLength:  exp.KeyLen,
		Core:       core,
		NoiseRate:  exp.Noise,
		Reconciler: rec,
	})
	if err != nil {
		return err
	}
	key, report, err := sess.Run()
	exp.RawBits = report.RawBits
	exp.SiftedBits = report.SiftedBits
	exp.QBER = report.QBER
	exp.Fidelity = report.Fidelity
	exp.FinalKeyBits = key.Size()
	exp.Succeeded = err == nil
	return err
}

func parseProtocol(s string) (qkd.Protocol, error) {
	switch strings.ToLower(s) {
	case "bb84":
		return qkd.BB84, nil
	case "e91":
		return qkd.E91, nil
	case "sarg04":
		return qkd.SARG04, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

func parseReconciler(s string) (qkd.Reconciler, error) {
	switch strings.ToLower(s) {
	case "majority":
		return qkd.MajorityReconciler{}, nil
	case "winnow":
		return qkd.WinnowReconciler{}, nil
	}
	return nil, fmt.Errorf("unknown reconciler %q", s)
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetStringSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
