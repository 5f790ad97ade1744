package game

func registerBuiltins(b *Behaviors) {
	b.Structures.Register("rune_mine", runeMine)
	b.Structures.Register("windmill", windmill)
	b.Structures.Register("shrine", shrine)
	b.Structures.Register("water_wheel", waterWheel)

	b.Statues.Register("fortune", StatueBehavior{Effect: fortune})
	b.Statues.Register("greed", StatueBehavior{Requires: []string{ParamPlayer}, Effect: greed})
	b.Statues.Register("river", StatueBehavior{Requires: []string{ParamTile}, Effect: riverBlessing})
	b.Statues.Register("industry", StatueBehavior{Requires: []string{ParamStructure}, Effect: industry})
	b.Statues.Register("echoes", StatueBehavior{Requires: []string{ParamArtifact}, Effect: echoes})

	b.Artifacts.RegisterPlayer("rune_shard", runeShard)
	b.Artifacts.RegisterPlayer("decay", decay)
	b.Artifacts.RegisterPlayer("energy_crystal", energyCrystal)
	b.Artifacts.RegisterPlayer("golden_idol", goldenIdol)
	b.Artifacts.RegisterField("fertile_seed", fertileSeed)
	b.Artifacts.RegisterField("earthquake", earthquake)
	b.Artifacts.RegisterTrap("rune_trap", runeTrap)
	b.Artifacts.RegisterTrap("energy_leech", energyLeech)
}

// Structures.

func runeMine(_ *World, actor *Player, s *Structure) bool {
	actor.AddRunes(s.Def.Yield + 1)
	return true
}

func windmill(_ *World, actor *Player, s *Structure) bool {
	if actor.energy >= actor.maxEnergy {
		return false
	}
	actor.AddEnergy(s.Def.Yield)
	return true
}

func shrine(w *World, actor *Player, s *Structure) bool {
	owned := 0
	for _, t := range w.board.Neighbors(s.X, s.Y) {
		if t.OwnedBy(actor.Name) {
			owned++
		}
	}
	if owned == 0 {
		return false
	}
	actor.AddRunes(2 * owned)
	return true
}

func waterWheel(w *World, actor *Player, s *Structure) bool {
	t, ok := w.board.Tile(s.X, s.Y)
	if !ok || !t.River {
		return false
	}
	actor.AddRunes(s.Def.Yield)
	return true
}

// Statues. The statue level selects the tier.

var fortuneTiers = [MaxStatueLevel]int{3, 6, 10}

func fortune(_ *World, actor *Player, s *Statue, _ StatueParams) bool {
	actor.AddRunes(fortuneTiers[s.level-1])
	return true
}

func greed(_ *World, actor *Player, s *Statue, p StatueParams) bool {
	if p.Player == actor || p.Player.runes == 0 {
		return false
	}
	stolen := -p.Player.AddRunes(-2 * s.level)
	actor.AddRunes(stolen)
	return true
}

func riverBlessing(_ *World, actor *Player, s *Statue, p StatueParams) bool {
	if !p.Tile.River || !p.Tile.OwnedBy(actor.Name) {
		return false
	}
	bonus := 1
	if s.level == MaxStatueLevel {
		bonus = 2
	}
	p.Tile.Yield += bonus
	return true
}

func industry(w *World, actor *Player, s *Statue, p StatueParams) bool {
	if s.level < 2 || p.Structure.owner != actor.Name {
		return false
	}
	if p.Structure.Def.Yield > w.settings.EnergyYieldThreshold {
		actor.AddRunes(p.Structure.Def.Yield)
	} else {
		actor.AddEnergy(p.Structure.Def.Yield)
	}
	return true
}

func echoes(_ *World, actor *Player, s *Statue, p StatueParams) bool {
	if s.level < MaxStatueLevel {
		return false
	}
	actor.addArtifact(newArtifact(p.Artifact.Def))
	return true
}

// Artifacts.

func runeShard(_ *World, _ *Player, a *Artifact, target *Player) bool {
	target.AddRunes(a.Def.Magnitude)
	return true
}

func decay(_ *World, _ *Player, a *Artifact, target *Player) bool {
	if target.runes == 0 {
		return false
	}
	target.AddRunes(-a.Def.Magnitude)
	return true
}

func energyCrystal(_ *World, _ *Player, a *Artifact, target *Player) bool {
	if target.energy >= target.maxEnergy {
		return false
	}
	target.AddEnergy(a.Def.Magnitude)
	return true
}

func goldenIdol(_ *World, _ *Player, a *Artifact, target *Player) bool {
	m := target.Multiplier(CategoryRunes)
	target.SetMultiplier(CategoryRunes, m+float64(a.Def.Magnitude)/100)
	return true
}

func fertileSeed(_ *World, actor *Player, a *Artifact, t *Tile) bool {
	if !t.OwnedBy(actor.Name) {
		return false
	}
	t.Yield += a.Def.Magnitude
	return true
}

func earthquake(w *World, _ *Player, _ *Artifact, t *Tile) bool {
	s, ok := t.Structure()
	if !ok {
		return false
	}
	if owner, found := w.roster.Get(s.owner); found {
		owner.removeStructure(s)
	}
	t.SetOccupant(nil)
	return true
}

// Traps.

func runeTrap(_ *World, trap *Trap, victim *Player, _ *Tile) bool {
	victim.AddRunes(-trap.Def.Magnitude)
	return true
}

func energyLeech(_ *World, trap *Trap, victim *Player, _ *Tile) bool {
	if victim.energy == 0 {
		return false
	}
	victim.AddEnergy(-trap.Def.Magnitude)
	return true
}
