package dashboard

import "time"

type SelectionKind string

const (
	Strength SelectionKind = "strength"
	Growth   SelectionKind = "growth"
)

type (
	// Filter selects the reflections in scope: those authored by active staff of the
	// given department, or by the given staff member. Zero values widen the scope.
	Filter struct {
		DepartmentID int64
		StaffID      int64
	}

	Stats struct {
		TotalTeachers           int
		TeachersWithReflections int
		TotalReflections        int
		DomainsCovered          int
		Strengths               int
		Growths                 int
		GrowthPlans             int
		ObservedPlans           int
	}

	DomainCount struct {
		DomainID   int64  `json:"domain_id"`
		DomainName string `json:"domain_name"`
		Total      int    `json:"total"`
	}

	ComponentCount struct {
		ComponentID int64  `json:"component_id"`
		Name        string `json:"name"`
		Count       int    `json:"count"`
	}

	RecentReflection struct {
		ID             int64     `json:"id"`
		StaffID        int64     `json:"staff_id"`
		StaffName      string    `json:"staff_name"`
		DepartmentName string    `json:"department_name"`
		CreatedAt      time.Time `json:"created_at"`
		GrowthPlans    int       `json:"growth_plans"`
		ObservedPlans  int       `json:"observed_plans"`
	}

	// ReportRow is one reflection line of the exported report.
	ReportRow struct {
		ReflectionID   int64
		StaffName      string
		StaffNo        string
		DepartmentName string
		CreatedAt      time.Time
		Domains        int
		Strengths      int
		Growths        int
		GrowthPlans    int
		ObservedPlans  int
	}

	// ScopeReport is the department or organization view.
	ScopeReport struct {
		TotalTeachers           int                `json:"total_teachers"`
		TeachersWithReflections int                `json:"teachers_with_reflections"`
		ReflectionCompletion    float64            `json:"reflection_completion"`
		TotalReflections        int                `json:"total_reflections"`
		GrowthPlans             int                `json:"growth_plans"`
		ObservedPlans           int                `json:"observed_plans"`
		UnobservedPlans         int                `json:"unobserved_plans"`
		StrengthCounts          []DomainCount      `json:"strength_counts"`
		GrowthCounts            []DomainCount      `json:"growth_counts"`
		Recent                  []RecentReflection `json:"recent"`
	}

	SelfReport struct {
		TotalReflections int                `json:"total_reflections"`
		DomainsCovered   int                `json:"domains_covered"`
		StrengthsCount   int                `json:"strengths_count"`
		GrowthsCount     int                `json:"growths_count"`
		TotalGrowthPlans int                `json:"total_growth_plans"`
		ObservedPlans    int                `json:"observed_plans"`
		TopStrengths     []ComponentCount   `json:"top_strengths"`
		TopGrowths       []ComponentCount   `json:"top_growths"`
		Recent           []RecentReflection `json:"recent"`
	}

	// Dashboard holds exactly one of Department, Organization or Self, as named by Scope.
	Dashboard struct {
		Scope        string       `json:"scope"`
		Department   *ScopeReport `json:"department,omitempty"`
		Organization *ScopeReport `json:"organization,omitempty"`
		Self         *SelfReport  `json:"self,omitempty"`
	}
)
