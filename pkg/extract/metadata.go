package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/store"
)

const metadataBatchSize = 100

func nodeID(n ado.ClassificationNode) string {
	if n.Identifier != "" {
		return n.Identifier
	}
	return strconv.Itoa(n.ID)
}

// extractClassification stores the area tree, the iteration tree or both,
// 100 nodes per batch.
func extractClassification(areas, iterations bool) strategy {
	return func(ctx context.Context, r *run) error {
		project := r.project.Name
		var areaNodes, iterationNodes []ado.ClassificationNode
		var err error
		if areas {
			if areaNodes, err = r.src.ListAreaPaths(ctx, project); err != nil {
				return fmt.Errorf("list area paths: %w", err)
			}
		}
		if iterations {
			if iterationNodes, err = r.src.ListIterationPaths(ctx, project); err != nil {
				return fmt.Errorf("list iteration paths: %w", err)
			}
		}

		// Areas come first in the combined index.
		split := len(areaNodes)
		all := append(append([]ado.ClassificationNode{}, areaNodes...), iterationNodes...)
		err = r.batched(ctx, len(all), metadataBatchSize, "classification nodes", func(lo, hi int) {
			var areaRows []store.AreaPath
			var iterationRows []store.IterationPath
			for i := lo; i < hi; i++ {
				n := all[i]
				if i < split {
					areaRows = append(areaRows, store.AreaPath{
						ExternalID:  nodeID(n),
						Name:        n.Name,
						Path:        n.Path,
						ParentPath:  n.ParentPath,
						HasChildren: n.HasChildren,
					})
					continue
				}
				iterationRows = append(iterationRows, store.IterationPath{
					ExternalID:  nodeID(n),
					Name:        n.Name,
					Path:        n.Path,
					ParentPath:  n.ParentPath,
					HasChildren: n.HasChildren,
					StartDate:   ado.ParseTime(n.StartDate),
					FinishDate:  ado.ParseTime(n.FinishDate),
				})
			}
			areaRows = dedupeBy(areaRows, func(a store.AreaPath) string { return a.ExternalID })
			if err := r.store.UpsertAreaPaths(ctx, r.project.ID, areaRows); err != nil {
				r.warn("Failed to save area paths", err, map[string]any{"from": lo + 1, "to": hi})
			}
			iterationRows = dedupeBy(iterationRows, func(it store.IterationPath) string { return it.ExternalID })
			if err := r.store.UpsertIterationPaths(ctx, r.project.ID, iterationRows); err != nil {
				r.warn("Failed to save iteration paths", err, map[string]any{"from": lo + 1, "to": hi})
			}
		})
		if err != nil {
			return err
		}
		if areas {
			r.counts["area_path_count"] = len(areaNodes)
		}
		if iterations {
			r.counts["iteration_path_count"] = len(iterationNodes)
		}
		return nil
	}
}

// extractCustomFields stores the fields outside the System and Microsoft
// namespaces.
func extractCustomFields(ctx context.Context, r *run) error {
	fields, err := r.src.ListFields(ctx, r.project.Name)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}
	custom := make([]ado.Field, 0, len(fields))
	for _, f := range fields {
		if f.IsCustom() {
			custom = append(custom, f)
		}
	}
	custom = dedupeBy(custom, func(f ado.Field) string { return f.ReferenceName })

	err = r.batched(ctx, len(custom), metadataBatchSize, "custom fields", func(lo, hi int) {
		rows := make([]store.CustomField, 0, hi-lo)
		for _, f := range custom[lo:hi] {
			rows = append(rows, store.CustomField{
				ExternalID:    f.ReferenceName,
				Name:          f.Name,
				ReferenceName: f.ReferenceName,
				Type:          f.Type,
				Usage:         f.Usage,
				ReadOnly:      f.ReadOnly,
			})
		}
		if err := r.store.UpsertCustomFields(ctx, r.project.ID, rows); err != nil {
			r.warn("Failed to save custom fields", err, map[string]any{"from": lo + 1, "to": hi})
		}
	})
	if err != nil {
		return err
	}
	r.counts["custom_field_count"] = len(custom)
	return nil
}

// extractUsers stores the members of every team, once each. A user's work
// item count comes from the work items already mirrored.
func extractUsers(ctx context.Context, r *run) error {
	project := r.project.Name
	teams, err := r.src.ListTeams(ctx, project)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	assigned, err := r.store.WorkItemCountsByAssignee(ctx, r.project.ID)
	if err != nil {
		return err
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	err = r.batched(ctx, len(teams), 1, "teams", func(lo, hi int) {
		for _, team := range teams[lo:hi] {
			members, err := r.src.ListTeamMembers(ctx, project, team.ID)
			if err != nil {
				r.warn(fmt.Sprintf("Failed to fetch members of team %s", team.Name), err, map[string]any{"team": team.Name})
				continue
			}
			rows := make([]store.ProjectUser, 0, len(members))
			for _, m := range members {
				if m.Identity.ID == "" || !seen.Add(m.Identity.ID) {
					continue
				}
				u := store.ProjectUser{
					ExternalID:    m.Identity.ID,
					DisplayName:   m.Identity.DisplayName,
					UniqueName:    m.Identity.UniqueName,
					WorkItemCount: assigned[m.Identity.DisplayName],
				}
				if strings.Contains(u.UniqueName, "@") {
					u.Email = u.UniqueName
				}
				rows = append(rows, u)
			}
			if err := r.store.UpsertUsers(ctx, r.project.ID, rows); err != nil {
				r.warn(fmt.Sprintf("Failed to save members of team %s", team.Name), err, map[string]any{"team": team.Name})
			}
		}
	})
	if err != nil {
		return err
	}
	r.counts["user_count"] = seen.Cardinality()
	return nil
}

// extractBoardColumns stores the boards of every team with their columns.
func extractBoardColumns(ctx context.Context, r *run) error {
	project := r.project.Name
	teams, err := r.src.ListTeams(ctx, project)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}

	return r.batched(ctx, len(teams), 1, "team boards", func(lo, hi int) {
		for _, team := range teams[lo:hi] {
			boards, err := r.src.ListBoards(ctx, project, team.ID)
			if err != nil {
				r.warn(fmt.Sprintf("Failed to fetch boards of team %s", team.Name), err, map[string]any{"team": team.Name})
				continue
			}
			for _, b := range boards {
				if ctx.Err() != nil {
					return
				}
				row := &store.Board{ProjectID: r.project.ID, ExternalID: b.ID, Name: b.Name, Team: team.Name}
				if err := r.store.UpsertBoard(ctx, row); err != nil {
					r.warn(fmt.Sprintf("Failed to save board %s", b.Name), err, map[string]any{"board": b.ID})
					continue
				}
				cols, err := r.src.ListBoardColumns(ctx, project, team.ID, b.ID)
				if err != nil {
					r.warn(fmt.Sprintf("Failed to fetch columns of board %s", b.Name), err, map[string]any{"board": b.ID})
					continue
				}
				rows := make([]store.BoardColumn, 0, len(cols))
				for _, c := range cols {
					rows = append(rows, store.BoardColumn{ExternalID: c.ID, Name: c.Name, ColumnType: c.ColumnType, ItemLimit: c.ItemLimit})
				}
				if err := r.store.UpsertBoardColumns(ctx, row.ID, dedupeBy(rows, func(c store.BoardColumn) string { return c.ExternalID })); err != nil {
					r.warn(fmt.Sprintf("Failed to save columns of board %s", b.Name), err, map[string]any{"board": b.ID})
				}
			}
		}
	})
}

// extractWikiPages stores every page of every wiki, one wiki per batch.
func extractWikiPages(ctx context.Context, r *run) error {
	project := r.project.Name
	wikis, err := r.src.ListWikis(ctx, project)
	if err != nil {
		return fmt.Errorf("list wikis: %w", err)
	}

	return r.batched(ctx, len(wikis), 1, "wikis", func(lo, hi int) {
		for _, w := range wikis[lo:hi] {
			pages, err := r.src.ListWikiPages(ctx, project, w.ID)
			if err != nil {
				r.warn(fmt.Sprintf("Failed to fetch pages of wiki %s", w.Name), err, map[string]any{"wiki": w.ID})
				continue
			}
			rows := make([]store.WikiPage, 0, len(pages))
			for _, p := range pages {
				rows = append(rows, store.WikiPage{
					ExternalID:  w.ID + ":" + strconv.Itoa(p.ID),
					WikiID:      w.ID,
					WikiName:    w.Name,
					Path:        p.Path,
					GitItemPath: p.GitItemPath,
					PageOrder:   p.Order,
					IsParent:    p.IsParent,
					Content:     p.Content,
				})
			}
			if err := r.store.UpsertWikiPages(ctx, r.project.ID, dedupeBy(rows, func(p store.WikiPage) string { return p.ExternalID })); err != nil {
				r.warn(fmt.Sprintf("Failed to save pages of wiki %s", w.Name), err, map[string]any{"wiki": w.ID})
			}
		}
	})
}

func extractQueries(ctx context.Context, r *run) error {
	queries, err := r.src.ListQueries(ctx, r.project.Name)
	if err != nil {
		return fmt.Errorf("list queries: %w", err)
	}
	queries = dedupeBy(queries, func(q ado.Query) string { return q.ID })

	return r.batched(ctx, len(queries), metadataBatchSize, "queries", func(lo, hi int) {
		rows := make([]store.Query, 0, hi-lo)
		for _, q := range queries[lo:hi] {
			rows = append(rows, store.Query{ExternalID: q.ID, Name: q.Name, Path: q.Path, QueryType: q.QueryType, Wiql: q.Wiql})
		}
		if err := r.store.UpsertQueries(ctx, r.project.ID, rows); err != nil {
			r.warn("Failed to save queries", err, map[string]any{"from": lo + 1, "to": hi})
		}
	})
}
