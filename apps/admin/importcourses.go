package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Bigestdave/LCUPrep/core/course"
)

// catalog is the layout of an import file.
type catalog struct {
	Courses []course.NewCourse `yaml:"courses"`
}

func (cli *commandLine) importCoursesCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "importcourses",
		Short: "Create or replace the courses (and their questions) listed in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening catalog")
			}
			defer func() { _ = f.Close() }()
			return cli.importCourses(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "The catalog file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// importCourses validates every course of the catalog before saving any of them.
func (cli *commandLine) importCourses(ctx context.Context, r io.Reader) error {
	var cat catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return errors.Wrap(err, "decoding catalog")
	}
	if len(cat.Courses) == 0 {
		return errors.New("catalog lists no course")
	}

	for i := range cat.Courses {
		if err := cat.Courses[i].Validate(cli.validate); err != nil {
			return errors.Wrapf(cli.describe(err), "course #%d (%s)", i+1, cat.Courses[i].Code)
		}
	}

	for _, nc := range cat.Courses {
		c, created, err := cli.courseSvc.Save(ctx, nc)
		if err != nil {
			return errors.Wrapf(err, "saving %s", nc.Code)
		}
		n, err := cli.courseSvc.CountQuestions(ctx, c.ID)
		if err != nil {
			return errors.Wrapf(err, "counting questions of %s", nc.Code)
		}
		verb := "updated"
		if created {
			verb = "created"
		}
		_, _ = fmt.Fprintf(cli.out, "%s %s (%s) with %d questions\n", verb, c.Code, c.ID, n)
	}
	return nil
}
