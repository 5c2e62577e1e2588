package actionkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inheritParent(ep *EntityPermission)  { ep.InheritFromParent = true }
func inheritLibrary(ep *EntityPermission) { ep.InheritFromLibrary = true }

func TestPermissionServiceSpecialAssignments(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("p1", nil, "alice", RoleManager, "bob", RoleContributor)

	f.assertActive("p1", Authority{ID: "alice"}, RoleManager)
	f.assertActive("p1", Authority{ID: "bob"}, RoleContributor)
	f.assertActive("p1", Authority{ID: "carol"}, RoleNoPermission)
	f.assertActive("missing", Authority{ID: "alice"}, "")
	f.assertActive("", Authority{ID: "alice"}, "")

	rr, err := f.service.Assignment(f.ctx, "p1", Authority{ID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, ResourceRoleID("p1", "bob"), rr.ID)
	assert.Equal(t, "p1", rr.TargetReference)
	assert.False(t, rr.Inherited())
	assert.Equal(t, testContributor, rr.Role)
	assert.Equal(t, string(AssignmentSpecial), rr.SystemInfo.Source)
}

func TestPermissionServiceParentInheritance(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("root", nil, "alice", RoleManager, "bob", RoleContributor)
	f.model("child", func(ep *EntityPermission) { ep.ParentID = "root"; inheritParent(ep) }, "bob", RoleConsumer)
	f.model("closed", func(ep *EntityPermission) { ep.ParentID = "root" })
	f.model("grandchild", func(ep *EntityPermission) { ep.ParentID = "child"; inheritParent(ep) })

	t.Run("inherited when enabled", func(t *testing.T) {
		f.assertActive("child", Authority{ID: "alice"}, RoleManager)
		f.assertActive("child", Authority{ID: "bob"}, RoleConsumer)

		rr, err := f.service.Assignment(f.ctx, "child", Authority{ID: "alice"})
		require.NoError(t, err)
		assert.True(t, rr.Inherited())
		assert.Equal(t, "root", rr.InheritedFromReference)
		assert.True(t, rr.IsManager())
	})

	t.Run("managers only when disabled", func(t *testing.T) {
		f.assertActive("closed", Authority{ID: "alice"}, RoleManager)
		f.assertActive("closed", Authority{ID: "bob"}, RoleNoPermission)
	})

	t.Run("inheritance is transitive", func(t *testing.T) {
		f.assertActive("grandchild", Authority{ID: "alice"}, RoleManager)
		f.assertActive("grandchild", Authority{ID: "bob"}, RoleConsumer)
	})

	t.Run("overrides", func(t *testing.T) {
		all, err := f.service.Assignments(f.ctx, "closed", AssignmentOptions{IncludeParent: Bool(true)})
		require.NoError(t, err)
		assert.Contains(t, all, "bob")

		all, err = f.service.Assignments(f.ctx, "child", AssignmentOptions{IncludeParent: Bool(false)})
		require.NoError(t, err)
		assert.Equal(t, RoleConsumer, all["bob"].Role.Identifier)
		assert.Equal(t, RoleManager, all["alice"].Role.Identifier)
	})
}

func TestPermissionServiceLibraryInheritance(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("lib", func(ep *EntityPermission) { ep.IsLibrary = true }, "alice", RoleManager, "bob", RoleCollaborator)
	f.model("parent", nil, "bob", RoleConsumer, "carol", RoleContributor)
	f.model("doc", func(ep *EntityPermission) {
		ep.ParentID = "parent"
		ep.LibraryID = "lib"
		inheritParent(ep)
		inheritLibrary(ep)
	})

	f.assertActive("doc", Authority{ID: "alice"}, RoleManager)
	f.assertActive("doc", Authority{ID: "bob"}, RoleConsumer)
	f.assertActive("doc", Authority{ID: "carol"}, RoleContributor)

	all, err := f.service.Assignments(f.ctx, "doc", AssignmentOptions{IncludeLibrary: Bool(false), IncludeParent: Bool(false)})
	require.NoError(t, err)
	assert.Contains(t, all, "alice")
	assert.NotContains(t, all, "bob")
	assert.Equal(t, string(AssignmentLibrary), all["alice"].SystemInfo.Source)
}

func TestPermissionServiceMixedSources(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("lib", func(ep *EntityPermission) { ep.IsLibrary = true }, "alice", RoleCollaborator, "bob", RoleManager, "dan", RoleConsumer)
	f.model("parent", nil, "alice", RoleConsumer, "carol", RoleConsumer, "dan", RoleContributor)
	f.model("child", func(ep *EntityPermission) {
		ep.ParentID = "parent"
		ep.LibraryID = "lib"
		inheritParent(ep)
		inheritLibrary(ep)
	}, "alice", RoleContributor, "bob", RoleConsumer)

	all, err := f.service.Assignments(f.ctx, "child", AssignmentOptions{})
	require.NoError(t, err)

	tests := []struct {
		authority     string
		active        string
		source        AssignmentType
		inheritedFrom string
	}{
		{authority: "alice", active: RoleContributor, source: AssignmentSpecial},
		{authority: "bob", active: RoleManager, source: AssignmentLibrary, inheritedFrom: "lib"},
		{authority: "carol", active: RoleConsumer, source: AssignmentInherited, inheritedFrom: "parent"},
		{authority: "dan", active: RoleContributor, source: AssignmentInherited, inheritedFrom: "parent"},
	}
	for _, tt := range tests {
		t.Run(tt.authority, func(t *testing.T) {
			rr := all[tt.authority]
			require.NotNil(t, rr)
			assert.Equal(t, tt.active, rr.Role.Identifier)
			assert.Equal(t, string(tt.source), rr.SystemInfo.Source)
			assert.Equal(t, tt.inheritedFrom, rr.InheritedFromReference)
			assert.Equal(t, tt.inheritedFrom != "", rr.Inherited())
		})
	}

	t.Run("direct assignment over a parent one", func(t *testing.T) {
		rr, err := f.service.Assignment(f.ctx, "child", NewAuthority("alice"))
		require.NoError(t, err)
		assert.False(t, rr.Inherited())
		assert.Equal(t, RoleConsumer, rr.Assignments.Inherited())
		assert.Equal(t, RoleCollaborator, rr.Assignments.Library())
	})
}

func TestPermissionServiceAllOtherDefault(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("p1", nil, "alice", RoleManager)
	f.model("p2", nil, "alice", RoleManager, DefaultAllOtherAuthority, RoleConsumer)
	f.model("child", func(ep *EntityPermission) { ep.ParentID = "p2"; inheritParent(ep) })

	all, err := f.service.Assignments(f.ctx, "p1", AssignmentOptions{})
	require.NoError(t, err)
	require.Contains(t, all, DefaultAllOtherAuthority)
	assert.Equal(t, RoleNoPermission, all[DefaultAllOtherAuthority].Role.Identifier)
	assert.Equal(t, string(AssignmentSpecial), all[DefaultAllOtherAuthority].SystemInfo.Source)

	f.assertActive("p1", NewAuthority("erin"), RoleNoPermission)
	f.assertActive("p2", NewAuthority("erin"), RoleConsumer)
	f.assertActive("child", NewAuthority("erin"), RoleConsumer)
	f.assertActive("missing", NewAuthority("erin"), "")

	t.Run("disabled", func(t *testing.T) {
		f := newPermissionFixture(t, WithAllOtherAuthority(""))
		f.model("p1", nil, "alice", RoleManager)
		all, err := f.service.Assignments(f.ctx, "p1", AssignmentOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
		f.assertActive("p1", NewAuthority("erin"), "")
	})
}

func TestPermissionServiceHierarchyCycle(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("a", func(ep *EntityPermission) { ep.ParentID = "b"; inheritParent(ep) }, "alice", RoleConsumer)
	f.model("b", func(ep *EntityPermission) { ep.ParentID = "a"; inheritParent(ep) }, "bob", RoleContributor)

	f.assertActive("a", Authority{ID: "alice"}, RoleConsumer)
	f.assertActive("a", Authority{ID: "bob"}, RoleContributor)
}

func TestPermissionServiceGroups(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("p1", nil,
		"alice", RoleManager,
		"team-a", RoleConsumer,
		"team-b", RoleCollaborator,
		DefaultAllOtherAuthority, RoleContributor,
	)
	f.model("p2", nil, "team-a", RoleManager, "team-b", RoleCollaborator)
	f.model("p3", nil, "alice", RoleManager, DefaultAllOtherAuthority, RoleConsumer)

	t.Run("own assignment wins over groups", func(t *testing.T) {
		f.assertActive("p1", NewAuthority("alice", "team-b"), RoleManager)
	})

	t.Run("most privileged group wins", func(t *testing.T) {
		f.assertActive("p1", NewAuthority("dan", "team-a", "team-b"), RoleCollaborator)
	})

	t.Run("manager group wins at once", func(t *testing.T) {
		f.assertActive("p2", NewAuthority("dan", "team-b", "team-a"), RoleManager)
	})

	t.Run("all other users apply without a group assignment", func(t *testing.T) {
		f.assertActive("p1", NewAuthority("erin"), RoleContributor)
		f.assertActive("p3", NewAuthority("erin", "team-x"), RoleConsumer)
	})

	t.Run("a group assignment hides all other users", func(t *testing.T) {
		f.assertActive("p1", NewAuthority("dan", "team-a"), RoleConsumer)
	})

	t.Run("assignments for many targets", func(t *testing.T) {
		out, err := f.service.AssignmentsFor(f.ctx, []string{"p1", "p2", "missing"}, NewAuthority("dan", "team-a"))
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, RoleConsumer, out["p1"].Role.Identifier)
		assert.Equal(t, RoleManager, out["p2"].Role.Identifier)
		assert.Equal(t, RoleNoPermission, out["missing"].Role.Identifier)

		out, err = f.service.AssignmentsFor(f.ctx, []string{"p1"}, Authority{})
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestPermissionServiceCustomAllOther(t *testing.T) {
	f := newPermissionFixture(t, WithAllOtherAuthority("everyone"))
	f.model("p1", nil, "alice", RoleManager, "everyone", RoleConsumer, DefaultAllOtherAuthority, RoleContributor)

	f.assertActive("p1", NewAuthority("erin"), RoleConsumer)
}

func TestPermissionServiceUndefinedRoles(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("p1", nil, "alice", "RETIRED_ROLE", "team-a", "RETIRED_ROLE", "team-b", RoleConsumer)

	rr, err := f.service.Assignment(f.ctx, "p1", NewAuthority("alice"))
	require.NoError(t, err)
	assert.Equal(t, "RETIRED_ROLE", rr.Role.Identifier, "undefined roles are kept by name")

	f.assertActive("p1", NewAuthority("dan", "team-a", "team-b"), RoleConsumer)
}

func TestPermissionServiceStoreErrors(t *testing.T) {
	f := newPermissionFixture(t)
	f.store.err = errStoreDown

	_, err := f.service.Assignment(f.ctx, "p1", NewAuthority("alice"))
	assert.ErrorIs(t, err, errStoreDown)

	_, err = f.service.AssignmentsFor(f.ctx, []string{"p1"}, NewAuthority("alice"))
	assert.ErrorIs(t, err, errStoreDown)

	_, err = f.service.PermissionModel(f.ctx, "p1")
	assert.ErrorIs(t, err, errStoreDown)
}

func TestPermissionServicePermissionModel(t *testing.T) {
	f := newPermissionFixture(t)
	f.model("p1", func(ep *EntityPermission) { inheritParent(ep) }, "alice", RoleManager)

	model, err := f.service.PermissionModel(f.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, PermissionModel{Defined: true, InheritFromParent: true, Special: true}, model)

	model, err = f.service.PermissionModel(f.ctx, "missing")
	require.NoError(t, err)
	assert.False(t, model.Defined)
}

func TestSetPermissions(t *testing.T) {
	project := NewInstance("project", "p1")

	t.Run("creates the model", func(t *testing.T) {
		f := newPermissionFixture(t)
		applied, err := f.service.SetPermissions(f.ctx, project,
			AddRoleAssignment{Authority: "alice", Role: RoleManager},
			AddRoleAssignment{Authority: "bob", Role: RoleConsumer},
		)
		require.NoError(t, err)
		assert.Equal(t, []AppliedChange{
			{Kind: ChangeAssignment, Authority: "alice", After: RoleManager},
			{Kind: ChangeAssignment, Authority: "bob", After: RoleConsumer},
		}, applied)
		f.assertActive("p1", NewAuthority("bob"), RoleConsumer)
	})

	t.Run("replaces and removes", func(t *testing.T) {
		f := newPermissionFixture(t)
		f.model("p1", nil, "alice", RoleManager, "bob", RoleConsumer, "carol", RoleConsumer)

		applied, err := f.service.SetPermissions(f.ctx, project,
			AddRoleAssignment{Authority: "bob", Role: RoleContributor},
			RemoveRoleAssignment{Authority: "carol", Role: RoleConsumer},
			RemoveRoleAssignment{Authority: "alice", Role: RoleConsumer},
			AddRoleAssignment{Authority: "alice", Role: RoleManager},
		)
		require.NoError(t, err)
		assert.Equal(t, []AppliedChange{
			{Kind: ChangeAssignment, Authority: "carol", Before: RoleConsumer},
			{Kind: ChangeAssignment, Authority: "bob", Before: RoleConsumer, After: RoleContributor},
		}, applied, "removes apply first and unchanged assignments are not reported")
		f.assertActive("p1", NewAuthority("bob"), RoleContributor)
		f.assertActive("p1", NewAuthority("carol"), RoleNoPermission)
	})

	t.Run("rejects undefined roles", func(t *testing.T) {
		f := newPermissionFixture(t)
		_, err := f.service.SetPermissions(f.ctx, project, AddRoleAssignment{Authority: "alice", Role: "UNDEFINED"})
		require.Error(t, err)
		assert.True(t, IsUnknownRole(err))
		assert.Zero(t, f.store.saves)

		_, err = f.service.SetPermissions(f.ctx, project, AddRoleAssignment{Role: RoleManager})
		assert.ErrorIs(t, err, ErrInvalidDefinition)
	})

	t.Run("root target keeps a manager", func(t *testing.T) {
		f := newPermissionFixture(t)
		f.model("p1", nil, "alice", RoleManager)

		_, err := f.service.SetPermissions(f.ctx, project, RemoveRoleAssignment{Authority: "alice", Role: RoleManager})
		require.ErrorIs(t, err, ErrMissingManager)
		assert.Zero(t, f.store.saves, "nothing is saved")
		f.assertActive("p1", NewAuthority("alice"), RoleManager)

		_, err = f.service.SetPermissions(f.ctx, project,
			RemoveRoleAssignment{Authority: "alice", Role: RoleManager},
			AddRoleAssignment{Authority: "bob", Role: RoleManager},
		)
		require.NoError(t, err)
		f.assertActive("p1", NewAuthority("bob"), RoleManager)
	})

	t.Run("manager through the library", func(t *testing.T) {
		f := newPermissionFixture(t)
		f.model("lib", func(ep *EntityPermission) { ep.IsLibrary = true }, "alice", RoleManager)

		applied, err := f.service.SetPermissions(f.ctx, project,
			LibraryChange{LibraryID: "lib"},
			InheritFromLibraryChange{Inherit: true},
			AddRoleAssignment{Authority: "bob", Role: RoleConsumer},
		)
		require.NoError(t, err)
		require.Len(t, applied, 2)
		assert.Equal(t, AppliedChange{Kind: ChangeLibraryInheritance, After: "lib"}, applied[1])
		f.assertActive("p1", NewAuthority("alice"), RoleManager)
	})

	t.Run("groups, children and libraries need no manager", func(t *testing.T) {
		f := newPermissionFixture(t)
		f.model("root", nil, "alice", RoleManager)

		_, err := f.service.SetPermissions(f.ctx, NewInstance(DefaultGroupType, "g1"),
			AddRoleAssignment{Authority: "bob", Role: RoleConsumer})
		require.NoError(t, err)

		_, err = f.service.SetPermissions(f.ctx, NewInstance("document", "d1"),
			ParentChange{ParentID: "root"},
			InheritFromParentChange{Inherit: false},
			AddRoleAssignment{Authority: "bob", Role: RoleConsumer})
		require.NoError(t, err)

		applied, err := f.service.SetPermissions(f.ctx, NewInstance("library", "l1"),
			LibraryIndicatorChange{IsLibrary: true},
			AddRoleAssignment{Authority: "bob", Role: RoleConsumer})
		require.NoError(t, err)
		assert.Len(t, applied, 1)
		assert.True(t, f.store.get("l1").IsLibrary)
	})

	t.Run("parent change reports managers only inheritance", func(t *testing.T) {
		f := newPermissionFixture(t)
		f.model("root", nil, "alice", RoleManager)

		applied, err := f.service.SetPermissions(f.ctx, NewInstance("document", "d1"), ParentChange{ParentID: "root"})
		require.NoError(t, err)
		assert.Equal(t, []AppliedChange{{Kind: ChangeParentInheritance, After: "root", ManagersOnly: true}}, applied)
		f.assertActive("d1", NewAuthority("alice"), RoleManager)

		applied, err = f.service.SetPermissions(f.ctx, NewInstance("document", "d1"), InheritFromParentChange{Inherit: true})
		require.NoError(t, err)
		assert.Equal(t, []AppliedChange{{Kind: ChangeParentInheritance, Before: "root", After: "root"}}, applied)
	})

	t.Run("unknown parent is unlinked", func(t *testing.T) {
		f := newPermissionFixture(t)
		_, err := f.service.SetPermissions(f.ctx, project,
			ParentChange{ParentID: "ghost"},
			AddRoleAssignment{Authority: "alice", Role: RoleManager})
		require.NoError(t, err)
		assert.Equal(t, "", f.store.get("p1").ParentID)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newPermissionFixture(t)
		_, err := f.service.SetPermissions(f.ctx, nil, AddRoleAssignment{Authority: "a", Role: RoleManager})
		assert.True(t, IsInvalidTarget(err))

		applied, err := f.service.SetPermissions(f.ctx, project)
		assert.NoError(t, err)
		assert.Nil(t, applied)
	})
}
