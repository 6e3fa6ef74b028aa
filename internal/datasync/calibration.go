package datasync

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/SeanJxie/polygo"
	"github.com/openacid/slimarray/polyfit"
)

const CALIBRATION_FIT_DEGREE = 3 // load cell response is fit with a cubic

// Calibration converts the controller's raw force samples (Volts) to
// Newtons. RawData holds the measured calibration points as "volts,newtons"
// lines; Prepare fits them with a polynomial evaluated per sample.
type Calibration struct {
	Id      int       `codec:"-" db:"id"           json:"id"`
	Name    string    `codec:"," db:"name"         json:"name" binding:"required"`
	RawData string    `codec:"-" db:"raw_cal_data" json:"data" binding:"required"`
	Coeffs  []float64 `codec:","                   json:"-"`

	polynomial *polygo.RealPolynomial
}

type InsufficientCalibrationError struct{}

func (e *InsufficientCalibrationError) Error() string {
	return "Not enough calibration points for a polynomial fit"
}

func (this *Calibration) ProcessRawData() error {
	var volts []float64
	var newtons []float64
	scanner := bufio.NewScanner(strings.NewReader(this.RawData))
	for scanner.Scan() {
		var v, n float64
		_, err := fmt.Sscanf(scanner.Text(), "%f,%f", &v, &n)
		if err == nil {
			volts = append(volts, v)
			newtons = append(newtons, n)
		}
	}
	if len(volts) <= CALIBRATION_FIT_DEGREE {
		return &InsufficientCalibrationError{}
	}

	f := polyfit.NewFit(volts, newtons, CALIBRATION_FIT_DEGREE)
	this.Coeffs = f.Solve()
	this.polynomial, _ = polygo.NewRealPolynomial(this.Coeffs)

	return nil
}

func (this *Calibration) Convert(sample float64) float64 {
	return this.polynomial.At(sample)
}
