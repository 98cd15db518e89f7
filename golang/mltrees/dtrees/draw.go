package dtrees

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//NodeDescription returns the label of node idx for tree rendering.
func (f *Forest) NodeDescription(idx int) string {
	node := f.Nodes[idx]
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.SampleCount))
	sb.WriteString(fmt.Sprintln("id: ", idx))
	if node.IsLeaf() {
		if node.ClassIdx >= 0 {
			sb.WriteString(fmt.Sprintln("class: ", node.ClassIdx))
		}
		sb.WriteString(fmt.Sprintf("value: %6.5g", node.Value))
		return sb.String()
	}

	split := f.Splits[node.Split]
	sb.WriteString(fmt.Sprintln("quality: ", fmt.Sprintf("%6.5g", split.Quality)))
	if split.Inversed {
		sb.WriteString("not ")
	}
	if f.Schema.VarTypes[split.VarIdx] == ml.VarCategorical {
		catMap := f.Schema.CatMaps[split.VarIdx]
		values := make([]string, 0, len(catMap))
		for code, raw := range catMap {
			if f.subsetBit(split.SubsetOfs, code) {
				values = append(values, fmt.Sprint(raw))
			}
		}
		sb.WriteString(fmt.Sprintf("f_%d in {%s}", split.VarIdx, strings.Join(values, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("f_%d < %6.5f", split.VarIdx, split.C))
	}
	return sb.String()
}

func (f *Forest) recurrentDraw(g *cgraph.Graph, idx int, parentNode *cgraph.Node) error {
	currentNode, err := g.CreateNode(fmt.Sprint(idx))
	if err != nil {
		return err
	}

	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	currentNode.Set("label", f.NodeDescription(idx))
	node := f.Nodes[idx]
	if node.IsLeaf() {
		currentNode.Set("shape", "box")
		return nil
	}
	if err := f.recurrentDraw(g, node.Left, currentNode); err != nil {
		return err
	}
	return f.recurrentDraw(g, node.Right, currentNode)
}

//DrawGraph builds the graph of tree number tree. The caller closes both returned objects.
func (f *Forest) DrawGraph(tree int) (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}

	if err := f.recurrentDraw(graph, f.Roots[tree], nil); err != nil {
		_ = graph.Close()
		_ = graphViz.Close()
		return nil, nil, err
	}
	return graphViz, graph, nil
}

var graphvizTypes = map[string]graphviz.Format{
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
}

//RenderTrees renders every tree into picturesDirectory as <dumpPrefix>_<index>.<figureType>.
func (f *Forest) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := graphvizTypes[figureType]
	if !ok {
		return ml.InvalidArgf("unknown figure type %q", figureType)
	}

	for graphInd := range f.Roots {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := f.DrawGraph(graphInd)
		if err != nil {
			return err
		}
		err = graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename))
		_ = graph.Close()
		_ = graphViz.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
