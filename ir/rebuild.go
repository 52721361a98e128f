package ir

// Rebuild interns a copy of id whose inputs are replaced by the given slice,
// re-running the node's constructor so types and schemas are re-resolved
// rather than copied. Column references resolve against the new relation by
// name. When the inputs are unchanged the original id is returned.
//
// Rebuild is the substitution primitive the rewrite passes are built on: a
// pass maps old ids to new ids bottom-up and rebuilds each consumer over its
// mapped inputs.
func (g *Graph) Rebuild(id NodeID, inputs []NodeID) (NodeID, error) {
	old := g.Inputs(id)
	if len(inputs) != len(old) {
		return InvalidNode, typef("rebuild of %s with %d inputs, want %d", g.Op(id), len(inputs), len(old))
	}
	same := true
	for i, in := range inputs {
		if in != old[i] {
			same = false
			break
		}
	}
	if same {
		return id, nil
	}

	switch op := g.Op(id); op {
	case OpDatabaseTable:
		return id, nil
	case OpView:
		return g.View(inputs[0], g.ViewOf(id).Name)
	case OpProject:
		return g.Project(inputs[0], g.ProjectOf(id).Names, inputs[1:])
	case OpFilter:
		return g.Filter(inputs[0], inputs[1:]...)
	case OpSort:
		return g.Sort(inputs[0], inputs[1:], g.SortOf(id).Specs)
	case OpLimit:
		p := g.LimitOf(id)
		return g.Limit(inputs[0], p.Count, p.Offset)
	case OpDistinct:
		return g.Distinct(inputs[0])
	case OpAggregate:
		p := g.AggregateOf(id)
		groups := inputs[1 : 1+len(p.GroupNames)]
		aggs := inputs[1+len(p.GroupNames):]
		return g.Aggregate(inputs[0], p.GroupNames, groups, p.AggNames, aggs)
	case OpJoin:
		return g.Join(g.JoinOf(id).Type, inputs[0], inputs[1], inputs[2:]...)
	case OpSetOperation:
		return g.SetOperation(g.SetOperationOf(id).Type, inputs[0], inputs[1])
	case OpUnnest:
		return g.Unnest(inputs[0], g.UnnestOf(id).Column)
	case OpLiteral:
		return id, nil
	case OpColumnRef:
		return g.ColumnRef(inputs[0], g.ColumnName(id))
	case OpCast:
		return g.Cast(inputs[0], g.DataTypeOf(id))
	case OpField:
		return g.Field(inputs[0], g.FieldOf(id).Name)
	case OpIndex:
		return g.ElementAt(inputs[0], inputs[1])
	case OpAdd:
		return g.Add(inputs[0], inputs[1])
	case OpSubtract:
		return g.Subtract(inputs[0], inputs[1])
	case OpMultiply:
		return g.Multiply(inputs[0], inputs[1])
	case OpDivide:
		return g.Divide(inputs[0], inputs[1])
	case OpModulus:
		return g.Modulus(inputs[0], inputs[1])
	case OpPower:
		return g.Power(inputs[0], inputs[1])
	case OpNegate:
		return g.Negate(inputs[0])
	case OpAbs:
		return g.Abs(inputs[0])
	case OpCeil:
		return g.Ceil(inputs[0])
	case OpFloor:
		return g.Floor(inputs[0])
	case OpRound:
		return g.Round(inputs[0], inputs[1:]...)
	case OpSqrt:
		return g.Sqrt(inputs[0])
	case OpExp:
		return g.Exp(inputs[0])
	case OpLn:
		return g.Ln(inputs[0])
	case OpEquals:
		return g.Equals(inputs[0], inputs[1])
	case OpNotEquals:
		return g.NotEquals(inputs[0], inputs[1])
	case OpLess:
		return g.Less(inputs[0], inputs[1])
	case OpLessEqual:
		return g.LessEqual(inputs[0], inputs[1])
	case OpGreater:
		return g.Greater(inputs[0], inputs[1])
	case OpGreaterEqual:
		return g.GreaterEqual(inputs[0], inputs[1])
	case OpBetween:
		return g.Between(inputs[0], inputs[1], inputs[2])
	case OpAnd:
		return g.And(inputs...)
	case OpOr:
		return g.Or(inputs...)
	case OpNot:
		return g.Not(inputs[0])
	case OpIsNull:
		return g.IsNull(inputs[0])
	case OpNotNull:
		return g.NotNull(inputs[0])
	case OpCoalesce:
		return g.Coalesce(inputs...)
	case OpNullIf:
		return g.NullIf(inputs[0], inputs[1])
	case OpInValues:
		return g.InValues(inputs[0], inputs[1:]...)
	case OpExists:
		return g.Exists(inputs[0], g.ExistsOf(id).Negated)
	case OpCase:
		pairs := inputs
		elseExpr := InvalidNode
		if g.CaseOf(id).HasElse {
			pairs = inputs[:len(inputs)-1]
			elseExpr = inputs[len(inputs)-1]
		}
		whens := make([]NodeID, 0, len(pairs)/2)
		thens := make([]NodeID, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			whens = append(whens, pairs[i])
			thens = append(thens, pairs[i+1])
		}
		return g.Case(whens, thens, elseExpr)
	case OpLower:
		return g.Lower(inputs[0])
	case OpUpper:
		return g.Upper(inputs[0])
	case OpLength:
		return g.Length(inputs[0])
	case OpTrim:
		return g.Trim(inputs[0])
	case OpSubstring:
		return g.Substring(inputs[0], inputs[1], inputs[2:]...)
	case OpStringConcat:
		return g.StringConcat(inputs...)
	case OpRegexMatch:
		return g.RegexMatch(inputs[0], inputs[1])
	case OpGreatest:
		return g.Greatest(inputs...)
	case OpLeast:
		return g.Least(inputs...)
	case OpExtract:
		return g.Extract(g.ExtractOf(id).Part, inputs[0])
	case OpSum:
		return g.Sum(inputs[0], g.ReductionOf(id).Distinct)
	case OpMean:
		return g.Mean(inputs[0], g.ReductionOf(id).Distinct)
	case OpMin:
		return g.Min(inputs[0])
	case OpMax:
		return g.Max(inputs[0])
	case OpCount:
		return g.Count(inputs[0], g.ReductionOf(id).Distinct)
	case OpCountStar:
		return g.CountStar(inputs[0])
	case OpWindow:
		p := g.WindowOf(id)
		parts := inputs[1 : 1+p.PartitionCount]
		orders := inputs[1+p.PartitionCount:]
		return g.Window(inputs[0], parts, orders, p.Specs, p.Frame)
	case OpRowNumber, OpRank, OpDenseRank, OpPercentRank, OpCumeDist:
		return id, nil
	case OpNtile:
		return g.Ntile(inputs[0])
	case OpLag:
		return g.Lag(inputs...)
	case OpLead:
		return g.Lead(inputs...)
	case OpFirstValue:
		return g.FirstValue(inputs[0])
	case OpLastValue:
		return g.LastValue(inputs[0])
	default:
		return InvalidNode, typef("rebuild of unknown operator %s", op)
	}
}
