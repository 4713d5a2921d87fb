package catalog

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

type (
	// RoleEnsurer returns the role with the given name, creating it when missing.
	RoleEnsurer interface {
		EnsureRole(ctx context.Context, name string) (staff.Role, error)
	}

	catalogFile struct {
		AcademicYears []struct {
			Start   int  `yaml:"start"`
			End     int  `yaml:"end"`
			Current bool `yaml:"current"`
		} `yaml:"academic_years"`
		Roles []struct {
			Name    string `yaml:"name"`
			Domains []struct {
				Name       string   `yaml:"name"`
				Components []string `yaml:"components"`
			} `yaml:"domains"`
		} `yaml:"roles"`
	}

	// LoadReport summarizes what LoadCatalog created.
	LoadReport struct {
		Domains       int
		Components    int
		AcademicYears int
	}
)

// LoadCatalog imports roles, domains, components and academic years from a YAML document.
// Entries that already exist (by name within their parent) are left untouched.
func (svc *Service) LoadCatalog(ctx context.Context, r io.Reader, roles RoleEnsurer) (LoadReport, error) {
	var (
		file   catalogFile
		report LoadReport
	)
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return report, errors.Wrap(err, "decoding catalog")
	}

	for _, ry := range file.Roles {
		if core.CleanString(ry.Name) == "" {
			return report, core.NewValidationError(errors.New("role name is required"))
		}
		role, err := roles.EnsureRole(ctx, ry.Name)
		if err != nil {
			return report, errors.Wrapf(err, "ensuring role %q", ry.Name)
		}

		existing, err := svc.repo.QueryDomains(ctx, DomainFilter{RoleID: role.ID, WithChildren: true})
		if err != nil {
			return report, errors.Wrap(err, "querying domains")
		}
		byName := make(map[string]Domain, len(existing))
		for _, d := range existing {
			byName[d.Name] = d
		}

		for _, dy := range ry.Domains {
			name := core.CleanString(dy.Name)
			dom, ok := byName[name]
			if !ok {
				if dom, err = svc.repo.CreateDomain(ctx, Domain{Name: name, RoleID: null.Int64From(role.ID)}); err != nil {
					return report, errors.Wrapf(err, "creating domain %q", name)
				}
				byName[name] = dom
				report.Domains++
			}
			compNames := make(map[string]bool, len(dom.Components))
			for _, c := range dom.Components {
				compNames[c.Name] = true
			}
			for _, cn := range dy.Components {
				cn = core.CleanString(cn)
				if cn == "" || compNames[cn] {
					continue
				}
				if _, err = svc.repo.CreateComponent(ctx, Component{DomainID: dom.ID, Name: cn}); err != nil {
					return report, errors.Wrapf(err, "creating component %q", cn)
				}
				compNames[cn] = true
				report.Components++
			}
		}
	}

	for _, ayy := range file.AcademicYears {
		if ayy.End <= ayy.Start {
			return report, core.NewValidationError(errors.Errorf("invalid academic year %d/%d", ayy.Start, ayy.End))
		}
		ay, err := svc.repo.GetAcademicYearByRange(ctx, ayy.Start, ayy.End)
		if core.IsNotFound(err) {
			if ay, err = svc.repo.CreateAcademicYear(ctx, AcademicYear{StartYear: ayy.Start, EndYear: ayy.End}); err != nil {
				return report, errors.Wrap(err, "creating academic year")
			}
			report.AcademicYears++
		} else if err != nil {
			return report, errors.Wrap(err, "getting academic year")
		}
		if ayy.Current {
			if err = svc.repo.SetCurrentAcademicYear(ctx, ay.ID); err != nil {
				return report, errors.Wrap(err, "setting current academic year")
			}
		}
	}
	return report, nil
}
