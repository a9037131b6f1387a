// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vigil-monitoring/vigil-go/model"
	"github.com/vigil-monitoring/vigil-go/query"
	"github.com/vigil-monitoring/vigil-go/vigil"
)

const applicationName = "vigilctl"

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

var errUsage = errors.New("usage: vigilctl [flags] list|count|set")

func main() {
	v, logger, fs, err := setup(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, v, logger, fs); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(2)
	}
}

func run(ctx context.Context, v *viper.Viper, logger *zap.Logger, fs *pflag.FlagSet) error {
	client, err := vigil.NewBasicClient(vigil.BasicClientConfig{
		Address: v.GetString("address"),
		Auth: vigil.Auth{
			Basic: v.GetString("auth.basic"),
		},
		PageSize: v.GetInt("pageSize"),
		Logger:   logger,
	}, nil)
	if err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return errUsage
	}

	switch fs.Arg(0) {
	case "list":
		return runList(ctx, client, fs)
	case "count":
		return runCount(ctx, client, fs)
	case "set":
		return runSet(ctx, client, fs)
	default:
		return errUsage
	}
}

func buildQuery(client *vigil.BasicClient, fs *pflag.FlagSet) (*query.Query, error) {
	content, _ := fs.GetString("content")
	q := client.Query(model.ContentType(content))

	clauses, _ := fs.GetStringArray("filter")
	for _, clause := range clauses {
		p, err := parseFilter(clause)
		if err != nil {
			return nil, err
		}
		q = q.Where(p)
	}

	if orderBy, _ := fs.GetString("orderby"); orderBy != "" {
		if desc, _ := fs.GetBool("desc"); desc {
			q = q.OrderByDescending(model.Property(orderBy))
		} else {
			q = q.OrderBy(model.Property(orderBy))
		}
	}
	if skip, _ := fs.GetInt("skip"); skip > 0 {
		q = q.Skip(skip)
	}
	if take, _ := fs.GetInt("take"); take > 0 {
		q = q.Take(take)
	}
	return q, nil
}

// parseFilter turns prop=value or prop=op:value into a predicate. A bare
// value means equality.
func parseFilter(clause string) (query.Predicate, error) {
	parts := strings.SplitN(clause, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("malformed filter %q, want prop=value or prop=op:value", clause)
	}
	prop := model.Property(parts[0])

	op := model.FilterEquals
	value := parts[1]
	if opValue := strings.SplitN(parts[1], ":", 2); len(opValue) == 2 {
		switch model.FilterOperator(opValue[0]) {
		case model.FilterEquals, model.FilterNotEquals, model.FilterContains, model.FilterGreater, model.FilterLess:
			op = model.FilterOperator(opValue[0])
			value = opValue[1]
		}
	}
	return query.Comparison{Property: prop, Operator: op, Value: value}, nil
}

func runList(ctx context.Context, client *vigil.BasicClient, fs *pflag.FlagSet) error {
	q, err := buildQuery(client, fs)
	if err != nil {
		return err
	}
	records, err := q.ToList(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		name, _ := r.Value(model.PropertyName)
		status, _ := r.Value(model.PropertyStatus)
		fmt.Fprintf(os.Stdout, "%d\t%s\t%s\n", r.RecordID(), cast.ToString(name), cast.ToString(status))
	}
	return nil
}

func runCount(ctx context.Context, client *vigil.BasicClient, fs *pflag.FlagSet) error {
	q, err := buildQuery(client, fs)
	if err != nil {
		return err
	}
	count, err := q.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, count)
	return nil
}

func runSet(ctx context.Context, client *vigil.BasicClient, fs *pflag.FlagSet) error {
	ids, _ := fs.GetIntSlice("ids")
	if len(ids) == 0 {
		return errors.New("set requires --ids")
	}
	assignments, _ := fs.GetStringArray("set")
	if len(assignments) == 0 {
		return errors.New("set requires at least one --set name=value")
	}

	var props model.PropertySet
	for _, assignment := range assignments {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return fmt.Errorf("malformed assignment %q, want name=value", assignment)
		}
		props = props.SetRaw(parts[0], parts[1])
	}

	queue := client.NewBatch()
	for _, id := range ids {
		queue.Enqueue(id, props)
	}
	if err := ctx.Err(); err != nil {
		queue.Discard()
		return err
	}
	return queue.Flush(ctx)
}
