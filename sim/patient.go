package sim

import "time"

// Sex is the biological sex covariate used by the Masui 2022 model.
type Sex int

const (
	Male   Sex = 0
	Female Sex = 1
)

// ASAStatus is the ASA physical status class used by the Masui 2022 model.
type ASAStatus int

const (
	ASA_I_II   ASAStatus = 0
	ASA_III_IV ASAStatus = 1
)

// Patient is immutable once constructed: age, weight, height, sex, and ASA
// status are covariates into PKParameterDeriver; derived fields (BMI, IBW,
// ABW) are computed at construction time and never recomputed.
type Patient struct {
	ID             string
	Age            float64 // years, [18,100]
	WeightKg       float64 // total body weight (TBW), kg, [30,200]
	HeightCm       float64 // cm, [120,220]
	Sex            Sex
	ASAPS          ASAStatus
	AnesthesiaAt   time.Time

	bmi float64
	ibw float64
	abw float64
}

// NewPatient validates covariates and constructs an immutable Patient,
// pre-computing BMI, IBW, and ABW. Returns a *Error with KindInvalidPatient
// on any covariate out of the §3 bounds.
func NewPatient(id string, age, weightKg, heightCm float64, sex Sex, asaPS ASAStatus, anesthesiaAt time.Time) (*Patient, error) {
	if age < 18 || age > 100 {
		return nil, newErr(KindInvalidPatient, nil, "age %.1f out of range [18,100]", age)
	}
	if weightKg < 30 || weightKg > 200 {
		return nil, newErr(KindInvalidPatient, nil, "weight %.1f kg out of range [30,200]", weightKg)
	}
	if heightCm < 120 || heightCm > 220 {
		return nil, newErr(KindInvalidPatient, nil, "height %.1f cm out of range [120,220]", heightCm)
	}
	if sex != Male && sex != Female {
		return nil, newErr(KindInvalidPatient, nil, "sex %d not one of {Male,Female}", sex)
	}
	if asaPS != ASA_I_II && asaPS != ASA_III_IV {
		return nil, newErr(KindInvalidPatient, nil, "ASA-PS %d not one of {I-II,III-IV}", asaPS)
	}

	p := &Patient{
		ID:           id,
		Age:          age,
		WeightKg:     weightKg,
		HeightCm:     heightCm,
		Sex:          sex,
		ASAPS:        asaPS,
		AnesthesiaAt: anesthesiaAt,
	}
	heightM := heightCm / 100
	p.bmi = weightKg / (heightM * heightM)

	sexTerm := 4.5
	if sex == Female {
		sexTerm = 0
	}
	p.ibw = 45.4 + 0.89*(heightCm-152.4) + sexTerm
	p.abw = p.ibw + 0.4*(weightKg-p.ibw)

	return p, nil
}

// BMI returns the precomputed body-mass index (kg/m^2).
func (p *Patient) BMI() float64 { return p.bmi }

// IBW returns the precomputed ideal body weight (kg).
func (p *Patient) IBW() float64 { return p.ibw }

// ABW returns the precomputed adjusted body weight (kg), the weight the
// Masui 2022 model is parameterized on.
func (p *Patient) ABW() float64 { return p.abw }
