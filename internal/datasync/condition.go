package datasync

import (
	"bufio"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Condition describes one task condition's target force trajectory, sampled
// on the controller clock. RawData holds one target force value per line.
type Condition struct {
	Id      int       `codec:"-" db:"id"              json:"id"`
	Name    string    `codec:"," db:"name"            json:"name" binding:"required"`
	RawData string    `codec:"-" db:"raw_target_data" json:"data" binding:"required"`
	Target  []float64 `codec:","                      json:"-"`
}

type EmptyConditionError struct{}

func (e *EmptyConditionError) Error() string {
	return "Condition has no target samples"
}

func (this *Condition) ProcessRawData() error {
	var target []float64
	scanner := bufio.NewScanner(strings.NewReader(this.RawData))
	for scanner.Scan() {
		var f float64
		_, err := fmt.Sscanf(scanner.Text(), "%f", &f)
		if err == nil {
			target = append(target, f)
		}
	}
	if len(target) == 0 {
		return &EmptyConditionError{}
	}
	this.Target = target

	return nil
}

// Static reports whether the target is flat. Static targets carry no timing
// information for the phase correction search.
func (this *Condition) Static() bool {
	return stat.Variance(this.Target, nil) <= STATIC_TARGET_VARIANCE
}
