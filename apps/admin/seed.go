package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/school"
	"github.com/trezcool/sdoims/core/ticket"
)

// seedFile is the layout of a seed file: the office hierarchy and the helpdesk categories.
type seedFile struct {
	Divisions []struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Districts []struct {
			Name    string             `json:"name"`
			Schools []school.NewSchool `json:"schools"`
		} `json:"districts"`
	} `json:"divisions"`
	TicketCategories []string `json:"ticket_categories"`
}

type seedStats struct {
	created, skipped int
}

func (s *seedStats) count(created bool) {
	if created {
		s.created++
	} else {
		s.skipped++
	}
}

// seed loads path. Records already present (same name, or same school code) are left alone, so a file may be loaded again.
func (cli *commandLine) seed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return errors.Wrap(err, "invalid JSONC")
	}
	var file seedFile
	if err = json.Unmarshal(standardized, &file); err != nil {
		return errors.Wrap(err, "invalid seed file")
	}

	ctx := context.Background()
	var stats seedStats
	for _, div := range file.Divisions {
		divisionID, created, err := cli.seedDivision(ctx, division.NewDivision{Name: div.Name, Region: div.Region})
		if err != nil {
			return err
		}
		stats.count(created)

		for _, dis := range div.Districts {
			districtID, created, err := cli.seedDistrict(ctx, district.NewDistrict{Name: dis.Name, DivisionID: divisionID})
			if err != nil {
				return err
			}
			stats.count(created)

			for _, sch := range dis.Schools {
				sch.DistrictID = districtID
				created, err := cli.seedSchool(ctx, sch)
				if err != nil {
					return err
				}
				stats.count(created)
			}
		}
	}
	for _, name := range file.TicketCategories {
		created, err := cli.seedCategory(ctx, name)
		if err != nil {
			return err
		}
		stats.count(created)
	}

	fmt.Fprintf(cli.out, "Seeded %s: %d created, %d already present.\n", path, stats.created, stats.skipped)
	return nil
}

func (cli *commandLine) seedDivision(ctx context.Context, in division.NewDivision) (int64, bool, error) {
	found, err := cli.divisions.Repo().FindBy(ctx, "name", in.Name)
	if err != nil || len(found) > 0 {
		return firstID(found), false, err
	}
	res, err := cli.divisions.Create(ctx, cliActor, in)
	if err != nil {
		return 0, false, errors.Wrapf(err, "division %q", in.Name)
	}
	return res.Record.ID, true, nil
}

func (cli *commandLine) seedDistrict(ctx context.Context, in district.NewDistrict) (int64, bool, error) {
	found, err := cli.districts.Repo().FindBy(ctx, "name", in.Name)
	if err != nil {
		return 0, false, err
	}
	for _, d := range found {
		if d.DivisionID == in.DivisionID {
			return d.ID, false, nil
		}
	}
	res, err := cli.districts.Create(ctx, cliActor, in)
	if err != nil {
		return 0, false, errors.Wrapf(err, "district %q", in.Name)
	}
	return res.Record.ID, true, nil
}

func (cli *commandLine) seedSchool(ctx context.Context, in school.NewSchool) (bool, error) {
	found, err := cli.schools.Repo().FindBy(ctx, "school_code", in.SchoolCode)
	if err != nil || len(found) > 0 {
		return false, err
	}
	if _, err = cli.schools.Create(ctx, cliActor, in); err != nil {
		return false, errors.Wrapf(err, "school %q", in.Name)
	}
	return true, nil
}

func (cli *commandLine) seedCategory(ctx context.Context, name string) (bool, error) {
	found, err := cli.categories.Repo().FindBy(ctx, "name", name)
	if err != nil || len(found) > 0 {
		return false, err
	}
	if _, err = cli.categories.Create(ctx, cliActor, ticket.NewCategory{Name: name}); err != nil {
		return false, errors.Wrapf(err, "ticket category %q", name)
	}
	return true, nil
}

func firstID(found []division.Division) int64 {
	if len(found) == 0 {
		return 0
	}
	return found[0].ID
}
